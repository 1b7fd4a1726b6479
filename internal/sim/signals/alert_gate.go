package signals

import (
	"backlab/internal/runspec"
	"backlab/internal/sim"
)

// AlertGate 只在外部预警窗口内放行 ENTER。
// arm_reentry 打开时同时发 REENTER_ARM，窗口内被止损仍可再进。
type AlertGate struct {
	kind       string
	armReentry bool
}

func newAlertGate(params map[string]any) (sim.SignalPlugin, error) {
	kind, _ := runspec.ParamString(params, "kind")
	arm, _ := runspec.ParamNumber(params, "arm_reentry")
	return &AlertGate{kind: kind, armReentry: arm > 0}, nil
}

func (p *AlertGate) Name() string { return "alert_gate" }

func (p *AlertGate) Requires() []string { return nil }

func (p *AlertGate) Generate(view *sim.Fence) ([]sim.Signal, error) {
	var active bool
	if p.kind == "" {
		active = view.AlertActive()
	} else {
		for _, a := range view.Alerts() {
			if a.Kind == p.kind && a.ActiveAt(view.Candle().CloseTime) {
				active = true
				break
			}
		}
	}
	if !active {
		return nil, nil
	}
	out := []sim.Signal{{
		Type:   sim.SignalEnter,
		Reason: "alert window active",
		Params: map[string]float64{"side_long": 1},
	}}
	if p.armReentry {
		out = append(out, sim.Signal{
			Type:   sim.SignalReenterArm,
			Reason: "alert window active",
			Params: map[string]float64{"armed": 1},
		})
	}
	return out, nil
}
