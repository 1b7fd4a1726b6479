package sim

import "fmt"

// PositionStatus 是仓位状态机的主状态。
type PositionStatus string

const (
	StatusFlat  PositionStatus = "FLAT"
	StatusLong  PositionStatus = "LONG"
	StatusShort PositionStatus = "SHORT"
)

// PositionSide 标记开仓方向。
type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

func (s PositionSide) status() PositionStatus {
	if s == SideShort {
		return StatusShort
	}
	return StatusLong
}

// PositionState 是跨回放步携带的唯一可变模拟状态的快照。
type PositionState struct {
	Status       PositionStatus `json:"status"`
	Side         PositionSide   `json:"side,omitempty"`
	Size         float64        `json:"size"`
	EntryPrice   float64        `json:"entry_price"`
	StopPrice    float64        `json:"stop_price"`
	TrailingRef  float64        `json:"trailing_ref"`
	ReentryArmed bool           `json:"reentry_armed"`
	Capital      float64        `json:"capital"`
}

// Machine 持有状态并只暴露读访问 + 少量转移原语。
// 原语由回放循环（成交落账）与执行策略（经 Txn）调用，
// 禁止直接改字段，保证每次变更可归因。
type Machine struct {
	st PositionState
}

// NewMachine 以初始资金创建 FLAT 状态机。
func NewMachine(capital float64) *Machine {
	return &Machine{st: PositionState{Status: StatusFlat, Capital: capital}}
}

// Snapshot 返回当前状态的只读拷贝。
func (m *Machine) Snapshot() PositionState { return m.st }

// open 执行 FLAT → LONG/SHORT。
func (m *Machine) open(side PositionSide, price, qty float64) error {
	if m.st.Status != StatusFlat {
		return fmt.Errorf("open 仅允许在 FLAT 状态，当前 %s", m.st.Status)
	}
	if price <= 0 || qty <= 0 {
		return fmt.Errorf("open 参数非法: price=%v qty=%v", price, qty)
	}
	m.st.Status = side.status()
	m.st.Side = side
	m.st.Size = qty
	m.st.EntryPrice = price
	m.st.TrailingRef = price
	m.st.ReentryArmed = false
	return nil
}

// close 平掉 qty（0 视为全部），返回已实现盈亏并计入资金。
func (m *Machine) close(price, qty float64) (float64, error) {
	if m.st.Status == StatusFlat {
		return 0, fmt.Errorf("close 不允许在 FLAT 状态")
	}
	if price <= 0 {
		return 0, fmt.Errorf("close 价格非法: %v", price)
	}
	if qty <= 0 || qty > m.st.Size {
		qty = m.st.Size
	}
	direction := 1.0
	if m.st.Side == SideShort {
		direction = -1
	}
	pnl := (price - m.st.EntryPrice) * qty * direction
	m.st.Capital += pnl
	m.st.Size -= qty
	if m.st.Size <= 0 {
		m.st.Status = StatusFlat
		m.st.Side = ""
		m.st.Size = 0
		m.st.EntryPrice = 0
		m.st.StopPrice = 0
		m.st.TrailingRef = 0
	}
	return pnl, nil
}

func (m *Machine) adjustStop(price float64) {
	m.st.StopPrice = price
}

func (m *Machine) setTrailingRef(price float64) {
	m.st.TrailingRef = price
}

func (m *Machine) armReentry(on bool) {
	m.st.ReentryArmed = on
}
