package signals

import (
	"math"

	"backlab/internal/runspec"
	"backlab/internal/sim"
)

// StopSeed 每根线发一条 SET_STOP，带上建议的止损距离。
// 配了 atr_mult 且 atr 列可用时按 ATR 距离，否则退回固定百分比。
type StopSeed struct {
	atrColumn string
	atrMult   float64
	stopPct   float64
}

func newStopSeed(params map[string]any) (sim.SignalPlugin, error) {
	col, _ := runspec.ParamString(params, "atr_column")
	if col == "" {
		col = "atr"
	}
	mult, _ := runspec.ParamNumber(params, "atr_mult")
	pct, ok := runspec.ParamNumber(params, "stop_pct")
	if !ok {
		pct = 0.05
	}
	return &StopSeed{atrColumn: col, atrMult: mult, stopPct: pct}, nil
}

func (p *StopSeed) Name() string { return "stop_seed" }

func (p *StopSeed) Requires() []string {
	if p.atrMult > 0 {
		return []string{p.atrColumn}
	}
	return nil
}

func (p *StopSeed) Generate(view *sim.Fence) ([]sim.Signal, error) {
	close := view.Candle().Close
	if close <= 0 {
		return nil, nil
	}
	distance := close * p.stopPct
	reason := "fixed pct stop"
	if p.atrMult > 0 {
		atr, err := view.Feature(p.atrColumn)
		if err != nil {
			return nil, err
		}
		if !math.IsNaN(atr) && atr > 0 {
			distance = atr * p.atrMult
			reason = "atr stop"
		}
	}
	return []sim.Signal{{
		Type:   sim.SignalSetStop,
		Reason: reason,
		Params: map[string]float64{"distance": distance},
	}}, nil
}
