package policies

import (
	"backlab/internal/market"
	"backlab/internal/runspec"
	"backlab/internal/sim"
)

// Entry 把信号换成方向性意图：空仓时消费 ENTER 按资金比例开仓，
// 持仓时消费 EXIT 全平。require_arm 打开时只有 reentry_armed
// 为真才放行 ENTER（配合止损后再入场）。
type Entry struct {
	fraction   float64
	requireArm bool
}

func newEntry(params map[string]any) (sim.ExecutionPolicy, error) {
	frac, ok := runspec.ParamNumber(params, "capital_fraction")
	if !ok || frac <= 0 || frac > 1 {
		frac = 1
	}
	arm, _ := runspec.ParamNumber(params, "require_arm")
	return &Entry{fraction: frac, requireArm: arm > 0}, nil
}

func (p *Entry) Name() string { return "entry" }

func (p *Entry) Execute(tx *sim.Txn, candle market.Candle, signals []sim.Signal) error {
	st := tx.State()
	if st.Status != sim.StatusFlat {
		for _, sig := range signals {
			if sig.Type != sim.SignalExit {
				continue
			}
			tx.MarkSignal(sig)
			tx.SubmitExit(0, sig.Reason)
			return nil
		}
		return nil
	}
	if p.requireArm && !st.ReentryArmed {
		return nil
	}
	if candle.Close <= 0 {
		return nil
	}
	for _, sig := range signals {
		if sig.Type != sim.SignalEnter {
			continue
		}
		side := sim.SideLong
		if sig.Param("side_long", 1) <= 0 {
			side = sim.SideShort
		}
		qty := st.Capital * p.fraction / candle.Close
		tx.MarkSignal(sig)
		tx.SubmitEnter(side, qty, sig.Reason)
		// 一根线最多开一次仓，后续 ENTER 留给下一步。
		return nil
	}
	return nil
}
