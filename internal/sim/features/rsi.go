package features

import (
	"math"

	"backlab/internal/sim"

	talib "github.com/markcheno/go-talib"
)

// RSI 输出单列 rsi。
type RSI struct {
	period int
}

func newRSI(params map[string]any) (sim.FeaturePlugin, error) {
	return &RSI{period: paramInt(params, "period", 14)}, nil
}

func (p *RSI) Name() string { return "rsi" }

func (p *RSI) Outputs() []string { return []string{"rsi"} }

func (p *RSI) Requires() []string { return nil }

func (p *RSI) Compute(view *sim.Fence) (map[string]float64, error) {
	closes := view.Closes(p.period * 4)
	if len(closes) < p.period+1 {
		return map[string]float64{"rsi": math.NaN()}, nil
	}
	series := talib.Rsi(closes, p.period)
	if len(series) == 0 {
		return map[string]float64{"rsi": math.NaN()}, nil
	}
	return map[string]float64{"rsi": series[len(series)-1]}, nil
}
