package signals

import "backlab/internal/sim"

// Register 把内置信号插件挂到注册表。
func Register(reg *sim.Registry) {
	if reg == nil {
		return
	}
	reg.RegisterSignal("ema_cross", newEMACross)
	reg.RegisterSignal("rsi_revert", newRSIRevert)
	reg.RegisterSignal("alert_gate", newAlertGate)
	reg.RegisterSignal("stop_seed", newStopSeed)
}
