package features

import "backlab/internal/sim"

// Register 把内置特征插件挂到注册表。
func Register(reg *sim.Registry) {
	if reg == nil {
		return
	}
	reg.RegisterFeature("ema_trend", newEMATrend)
	reg.RegisterFeature("rsi", newRSI)
	reg.RegisterFeature("atr", newATR)
	reg.RegisterFeature("macd", newMACD)
	reg.RegisterFeature("rolling_return", newRollingReturn)
}
