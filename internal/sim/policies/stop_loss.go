package policies

import (
	"backlab/internal/market"
	"backlab/internal/runspec"
	"backlab/internal/sim"
)

// StopLoss 先查破位再落种子：持仓时收盘价触及止损就全平；
// 尚未设置止损时用 SET_STOP 信号（或固定比例）种下初始止损。
type StopLoss struct {
	stopPct float64
}

func newStopLoss(params map[string]any) (sim.ExecutionPolicy, error) {
	pct, _ := runspec.ParamNumber(params, "stop_pct")
	return &StopLoss{stopPct: pct}, nil
}

func (p *StopLoss) Name() string { return "stop_loss" }

func (p *StopLoss) Execute(tx *sim.Txn, candle market.Candle, signals []sim.Signal) error {
	st := tx.State()
	if st.Status == sim.StatusFlat {
		return nil
	}
	if priceBreachedStop(st.Side, candle.Close, st.StopPrice) {
		tx.SubmitExit(0, "stop loss hit")
		return nil
	}
	if st.StopPrice > 0 {
		return nil
	}
	for _, sig := range signals {
		if sig.Type != sim.SignalSetStop {
			continue
		}
		distance := sig.Param("distance", 0)
		if distance <= 0 {
			continue
		}
		stop := p.seedStop(st, distance)
		if stop <= 0 {
			continue
		}
		tx.MarkSignal(sig)
		tx.AdjustStop(stop, "seed from signal")
		return nil
	}
	if p.stopPct > 0 {
		tx.AdjustStop(relativeTarget(st.EntryPrice, -p.stopPct, st.Side), "seed from fixed pct")
	}
	return nil
}

func (p *StopLoss) seedStop(st sim.PositionState, distance float64) float64 {
	if st.Side == sim.SideShort {
		return st.EntryPrice + distance
	}
	return st.EntryPrice - distance
}
