package signals

import (
	"math"

	"backlab/internal/runspec"
	"backlab/internal/sim"
)

// EMACross 在 fast/slow 金叉时发 ENTER、死叉时发 EXIT。
// warm-up 期间任一值为 NaN 则不表态。
type EMACross struct {
	fastCol string
	slowCol string
}

func newEMACross(params map[string]any) (sim.SignalPlugin, error) {
	fast, _ := runspec.ParamString(params, "fast_column")
	if fast == "" {
		fast = "ema_fast"
	}
	slow, _ := runspec.ParamString(params, "slow_column")
	if slow == "" {
		slow = "ema_slow"
	}
	return &EMACross{fastCol: fast, slowCol: slow}, nil
}

func (p *EMACross) Name() string { return "ema_cross" }

func (p *EMACross) Requires() []string { return []string{p.fastCol, p.slowCol} }

func (p *EMACross) Generate(view *sim.Fence) ([]sim.Signal, error) {
	t := view.Index()
	if t == 0 {
		return nil, nil
	}
	fastCur, err := view.Feature(p.fastCol)
	if err != nil {
		return nil, err
	}
	slowCur, err := view.Feature(p.slowCol)
	if err != nil {
		return nil, err
	}
	fastPrev, err := view.FeatureAt(p.fastCol, t-1)
	if err != nil {
		return nil, err
	}
	slowPrev, err := view.FeatureAt(p.slowCol, t-1)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(fastCur) || math.IsNaN(slowCur) || math.IsNaN(fastPrev) || math.IsNaN(slowPrev) {
		return nil, nil
	}
	if fastPrev <= slowPrev && fastCur > slowCur {
		return []sim.Signal{{
			Type:   sim.SignalEnter,
			Reason: "ema cross up",
			Params: map[string]float64{"side_long": 1},
		}}, nil
	}
	if fastPrev >= slowPrev && fastCur < slowCur {
		return []sim.Signal{{
			Type:   sim.SignalExit,
			Reason: "ema cross down",
		}}, nil
	}
	return nil, nil
}
