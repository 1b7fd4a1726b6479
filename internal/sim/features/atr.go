package features

import (
	"math"

	"backlab/internal/sim"

	talib "github.com/markcheno/go-talib"
)

// ATR 输出单列 atr，供止损类策略换算价格距离。
type ATR struct {
	period int
}

func newATR(params map[string]any) (sim.FeaturePlugin, error) {
	return &ATR{period: paramInt(params, "period", 14)}, nil
}

func (p *ATR) Name() string { return "atr" }

func (p *ATR) Outputs() []string { return []string{"atr"} }

func (p *ATR) Requires() []string { return nil }

func (p *ATR) Compute(view *sim.Fence) (map[string]float64, error) {
	lookback := p.period * 4
	window := view.Window(lookback)
	if len(window) < p.period+1 {
		return map[string]float64{"atr": math.NaN()}, nil
	}
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	closes := make([]float64, len(window))
	for i, c := range window {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	series := talib.Atr(highs, lows, closes, p.period)
	if len(series) == 0 {
		return map[string]float64{"atr": math.NaN()}, nil
	}
	return map[string]float64{"atr": series[len(series)-1]}, nil
}
