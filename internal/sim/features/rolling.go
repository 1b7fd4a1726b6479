package features

import (
	"math"

	"backlab/internal/sim"
)

// RollingReturn 输出对数收益与滚动峰值两列路径特征。
type RollingReturn struct {
	window int
}

func newRollingReturn(params map[string]any) (sim.FeaturePlugin, error) {
	return &RollingReturn{window: paramInt(params, "window", 20)}, nil
}

func (p *RollingReturn) Name() string { return "rolling_return" }

func (p *RollingReturn) Outputs() []string { return []string{"log_return", "rolling_peak"} }

func (p *RollingReturn) Requires() []string { return nil }

func (p *RollingReturn) Compute(view *sim.Fence) (map[string]float64, error) {
	out := map[string]float64{
		"log_return":   math.NaN(),
		"rolling_peak": math.NaN(),
	}
	cur := view.Candle()
	if view.Index() > 0 {
		prev, err := view.CandleAt(view.Index() - 1)
		if err != nil {
			return nil, err
		}
		if prev.Close > 0 && cur.Close > 0 {
			out["log_return"] = math.Log(cur.Close / prev.Close)
		}
	}
	window := view.Window(p.window)
	peak := math.Inf(-1)
	for _, c := range window {
		if c.High > peak {
			peak = c.High
		}
	}
	if !math.IsInf(peak, -1) {
		out["rolling_peak"] = peak
	}
	return out, nil
}
