package policies

import (
	"fmt"

	"backlab/internal/market"
	"backlab/internal/runspec"
	"backlab/internal/sim"
)

// TrailingStop 以持仓期间最优收盘价为锚、按固定回撤比例移动止损。
// 破位判断在前、抬锚在后：触发那一根以触发前的止损为准。
type TrailingStop struct {
	trailPct float64
}

func newTrailingStop(params map[string]any) (sim.ExecutionPolicy, error) {
	pct, ok := runspec.ParamNumber(params, "trail_pct")
	if !ok {
		pct = 0.10
	}
	if pct <= 0 || pct >= 1 {
		return nil, fmt.Errorf("trail_pct 需在 (0,1) 内，当前=%v", pct)
	}
	return &TrailingStop{trailPct: pct}, nil
}

func (p *TrailingStop) Name() string { return "trailing_stop" }

func (p *TrailingStop) Execute(tx *sim.Txn, candle market.Candle, signals []sim.Signal) error {
	st := tx.State()
	if st.Status == sim.StatusFlat {
		return nil
	}
	if priceBreachedStop(st.Side, candle.Close, st.StopPrice) {
		tx.SubmitExit(0, "trailing stop hit")
		return nil
	}
	anchor := st.TrailingRef
	if anchor <= 0 {
		anchor = st.EntryPrice
	}
	if !shouldUpdateAnchor(st.Side, candle.Close, anchor) {
		return nil
	}
	tx.SetTrailingRef(candle.Close)
	next := trailingStopFor(st.Side, candle.Close, p.trailPct)
	if shouldUpdateStop(st.Side, next, st.StopPrice) {
		tx.AdjustStop(next, "trailing adjust")
	}
	return nil
}
