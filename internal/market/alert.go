package market

// Alert 是研究侧物化好的告警元数据，标记某段时间窗口值得关注。
// 核心只读取它，不负责产生或清洗。
type Alert struct {
	ID        int64          `json:"id"`
	Symbol    string         `json:"symbol"`
	Kind      string         `json:"kind"`
	FiredAt   int64          `json:"fired_at"`
	ExpiresAt int64          `json:"expires_at"`
	Score     float64        `json:"score"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ActiveAt 判断告警窗口是否覆盖 ts（毫秒）。
func (a Alert) ActiveAt(ts int64) bool {
	if ts < a.FiredAt {
		return false
	}
	if a.ExpiresAt > 0 && ts > a.ExpiresAt {
		return false
	}
	return true
}

// AnyActive 返回 ts 时刻是否存在生效中的告警。
func AnyActive(alerts []Alert, ts int64) bool {
	for _, a := range alerts {
		if a.ActiveAt(ts) {
			return true
		}
	}
	return false
}
