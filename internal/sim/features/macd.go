package features

import (
	"math"

	"backlab/internal/sim"

	talib "github.com/markcheno/go-talib"
)

// MACD 输出 macd / macd_signal / macd_hist 三列。
type MACD struct {
	fast   int
	slow   int
	signal int
}

func newMACD(params map[string]any) (sim.FeaturePlugin, error) {
	return &MACD{
		fast:   paramInt(params, "fast", 12),
		slow:   paramInt(params, "slow", 26),
		signal: paramInt(params, "signal", 9),
	}, nil
}

func (p *MACD) Name() string { return "macd" }

func (p *MACD) Outputs() []string { return []string{"macd", "macd_signal", "macd_hist"} }

func (p *MACD) Requires() []string { return nil }

func (p *MACD) Compute(view *sim.Fence) (map[string]float64, error) {
	nan := map[string]float64{"macd": math.NaN(), "macd_signal": math.NaN(), "macd_hist": math.NaN()}
	lookback := (p.slow + p.signal) * 3
	closes := view.Closes(lookback)
	if len(closes) < p.slow+p.signal {
		return nan, nil
	}
	macd, signal, hist := talib.Macd(closes, p.fast, p.slow, p.signal)
	if len(macd) == 0 {
		return nan, nil
	}
	last := len(macd) - 1
	return map[string]float64{
		"macd":        macd[last],
		"macd_signal": signal[last],
		"macd_hist":   hist[last],
	}, nil
}
