package policies

import (
	"backlab/internal/market"
	"backlab/internal/runspec"
	"backlab/internal/sim"
)

// Reentry 维护再入场标记：消费 REENTER_ARM 信号，
// on_stop 打开时在平仓成交的下一根 K 线武装标记。
// 是否刚被平仓从账本的最后一笔 FILL 推导，策略自身无记忆。
type Reentry struct {
	onStop bool
}

func newReentry(params map[string]any) (sim.ExecutionPolicy, error) {
	onStop, _ := runspec.ParamNumber(params, "on_stop")
	return &Reentry{onStop: onStop > 0}, nil
}

func (p *Reentry) Name() string { return "reentry" }

func (p *Reentry) Execute(tx *sim.Txn, candle market.Candle, signals []sim.Signal) error {
	st := tx.State()
	if p.onStop && st.Status == sim.StatusFlat && !st.ReentryArmed && justClosed(tx.Fills(), tx.Index()) {
		tx.ArmReentry(true)
	}
	for _, sig := range signals {
		if sig.Type != sim.SignalReenterArm {
			continue
		}
		armed := sig.Param("armed", 1) > 0
		if armed == tx.State().ReentryArmed {
			continue
		}
		tx.MarkSignal(sig)
		tx.ArmReentry(armed)
	}
	return nil
}

// justClosed 判断最后一笔成交是否是上一根 K 线上的平仓。
func justClosed(fills []sim.Event, index int) bool {
	if len(fills) == 0 {
		return false
	}
	last := fills[len(fills)-1]
	kind, _ := last.Metadata["kind"].(string)
	return kind == string(sim.IntentExit) && last.Index == index-1
}
