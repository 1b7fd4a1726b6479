package policies

import "backlab/internal/sim"

// Register 把内置执行策略挂到注册表。
func Register(reg *sim.Registry) {
	if reg == nil {
		return
	}
	reg.RegisterPolicy("entry", newEntry)
	reg.RegisterPolicy("stop_loss", newStopLoss)
	reg.RegisterPolicy("trailing_stop", newTrailingStop)
	reg.RegisterPolicy("ladder_exit", newLadderExit)
	reg.RegisterPolicy("reentry", newReentry)
}
