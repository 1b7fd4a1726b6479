package signals

import (
	"math"

	"backlab/internal/runspec"
	"backlab/internal/sim"
)

// RSIRevert 超卖回升入场、超买离场的均值回归信号。
type RSIRevert struct {
	column     string
	oversold   float64
	overbought float64
}

func newRSIRevert(params map[string]any) (sim.SignalPlugin, error) {
	col, _ := runspec.ParamString(params, "column")
	if col == "" {
		col = "rsi"
	}
	os, ok := runspec.ParamNumber(params, "oversold")
	if !ok {
		os = 30
	}
	ob, ok := runspec.ParamNumber(params, "overbought")
	if !ok {
		ob = 70
	}
	return &RSIRevert{column: col, oversold: os, overbought: ob}, nil
}

func (p *RSIRevert) Name() string { return "rsi_revert" }

func (p *RSIRevert) Requires() []string { return []string{p.column} }

func (p *RSIRevert) Generate(view *sim.Fence) ([]sim.Signal, error) {
	t := view.Index()
	cur, err := view.Feature(p.column)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(cur) {
		return nil, nil
	}
	if cur >= p.overbought {
		return []sim.Signal{{
			Type:   sim.SignalExit,
			Reason: "rsi overbought",
			Params: map[string]float64{"rsi": cur},
		}}, nil
	}
	if t == 0 {
		return nil, nil
	}
	prev, err := view.FeatureAt(p.column, t-1)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(prev) {
		return nil, nil
	}
	// 从超卖区向上穿越才入场，避免下跌途中接飞刀。
	if prev < p.oversold && cur >= p.oversold {
		return []sim.Signal{{
			Type:   sim.SignalEnter,
			Reason: "rsi revert from oversold",
			Params: map[string]float64{"rsi": cur, "side_long": 1},
		}}, nil
	}
	return nil, nil
}
