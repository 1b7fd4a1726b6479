package features

import (
	"math"

	"backlab/internal/runspec"
	"backlab/internal/sim"

	talib "github.com/markcheno/go-talib"
)

// EMATrend 输出 ema_fast / ema_mid / ema_slow 三列。
// warm-up 不足时写 NaN，下游信号插件把 NaN 当作"无观点"。
type EMATrend struct {
	fast int
	mid  int
	slow int
}

func newEMATrend(params map[string]any) (sim.FeaturePlugin, error) {
	fast := paramInt(params, "fast", 9)
	mid := paramInt(params, "mid", 21)
	slow := paramInt(params, "slow", 55)
	return &EMATrend{fast: fast, mid: mid, slow: slow}, nil
}

func (p *EMATrend) Name() string { return "ema_trend" }

func (p *EMATrend) Outputs() []string { return []string{"ema_fast", "ema_mid", "ema_slow"} }

func (p *EMATrend) Requires() []string { return nil }

func (p *EMATrend) Compute(view *sim.Fence) (map[string]float64, error) {
	lookback := p.slow * 3
	closes := view.Closes(lookback)
	return map[string]float64{
		"ema_fast": lastEMA(closes, p.fast),
		"ema_mid":  lastEMA(closes, p.mid),
		"ema_slow": lastEMA(closes, p.slow),
	}, nil
}

func lastEMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return math.NaN()
	}
	series := talib.Ema(closes, period)
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

func paramInt(params map[string]any, key string, fallback int) int {
	if v, ok := runspec.ParamNumber(params, key); ok && v > 0 {
		return int(v)
	}
	return fallback
}

func paramFloat(params map[string]any, key string, fallback float64) float64 {
	if v, ok := runspec.ParamNumber(params, key); ok {
		return v
	}
	return fallback
}
