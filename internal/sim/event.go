package sim

import "fmt"

// EventType 是账本事件类型。
type EventType string

const (
	EventFill           EventType = "FILL"
	EventStopChange     EventType = "STOP_CHANGE"
	EventPositionUpdate EventType = "POSITION_UPDATE"
	EventSignalFire     EventType = "SIGNAL_FIRE"
)

// Event 一经 append 不可变。EventID 由 run 内单调序号生成：
// 账本必须可逐字节复现，uuid / 墙钟时间都不允许进入核心。
type Event struct {
	EventID   string         `json:"event_id"`
	Seq       int64          `json:"seq"`
	Type      EventType      `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Index     int            `json:"index"`
	Price     float64        `json:"price"`
	Quantity  float64        `json:"quantity"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func eventID(seq int64) string {
	return fmt.Sprintf("evt-%08d", seq)
}

// IntentKind 区分待成交意图的方向性质。
type IntentKind string

const (
	IntentEnter IntentKind = "enter"
	IntentExit  IntentKind = "exit"
)

// OrderIntent 由执行策略产出，交给 Fill Model 换取 FILL 事件。
type OrderIntent struct {
	Kind      IntentKind
	Side      PositionSide
	Quantity  float64 // exit 时 0 表示全部
	Policy    string
	Timestamp int64
	Reason    string
}
