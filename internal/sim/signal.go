package sim

// SignalType 枚举信号阶段可产出的离散意图。
type SignalType string

const (
	SignalEnter      SignalType = "ENTER"
	SignalExit       SignalType = "EXIT"
	SignalSetStop    SignalType = "SET_STOP"
	SignalTrail      SignalType = "TRAIL_UPDATE"
	SignalReenterArm SignalType = "REENTER_ARM"
)

// Signal 是一次回放步内的瞬态意图：由信号插件产出、执行策略消费，
// 只有被策略转化为事件时才会进入账本。
type Signal struct {
	Type      SignalType
	Timestamp int64
	Source    string
	Reason    string
	Params    map[string]float64
}

// Param 读取数值参数，缺省返回 fallback。
func (s Signal) Param(key string, fallback float64) float64 {
	if v, ok := s.Params[key]; ok {
		return v
	}
	return fallback
}

// FilterSignals 返回 batch 中指定类型的信号，保持声明序。
func FilterSignals(batch []Signal, t SignalType) []Signal {
	var out []Signal
	for _, s := range batch {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}
