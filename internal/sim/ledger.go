package sim

import "encoding/json"

// LedgerSchemaVersion 标识事件序列的 schema 版本。
const LedgerSchemaVersion = 1

// LedgerStatus 标记账本的完整性。
type LedgerStatus string

const (
	LedgerRunning  LedgerStatus = "running"
	LedgerComplete LedgerStatus = "complete"
	LedgerFailed   LedgerStatus = "failed"
	LedgerAborted  LedgerStatus = "aborted"
)

// Ledger 是 append-only 的事件序列，run 的唯一事实来源。
// append 是唯一写入口；事件一经写入不再修改或删除。
// 失败/中止的 run 保留已写入的部分账本并打上标记，绝不当作
// 可复现结果使用。
type Ledger struct {
	events      []Event
	seq         int64
	status      LedgerStatus
	failure     string
	failedIndex int
}

// NewLedger 创建空账本。
func NewLedger() *Ledger {
	return &Ledger{status: LedgerRunning, failedIndex: -1}
}

func (l *Ledger) append(evt Event) Event {
	l.seq++
	evt.Seq = l.seq
	evt.EventID = eventID(l.seq)
	l.events = append(l.events, evt)
	return evt
}

// Events 返回事件序列的拷贝。
func (l *Ledger) Events() []Event {
	return append([]Event(nil), l.events...)
}

// Len 返回事件数。
func (l *Ledger) Len() int { return len(l.events) }

// Status 返回账本状态。
func (l *Ledger) Status() LedgerStatus { return l.status }

// Failure 返回失败原因与失败索引（健康账本为 "", -1）。
func (l *Ledger) Failure() (string, int) { return l.failure, l.failedIndex }

func (l *Ledger) seal() {
	l.status = LedgerComplete
}

func (l *Ledger) fail(err error, index int) {
	l.status = LedgerFailed
	if err != nil {
		l.failure = err.Error()
	}
	l.failedIndex = index
}

func (l *Ledger) abort(err error, index int) {
	l.status = LedgerAborted
	if err != nil {
		l.failure = err.Error()
	}
	l.failedIndex = index
}

type ledgerEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	Status        LedgerStatus `json:"status"`
	Failure       string       `json:"failure,omitempty"`
	FailedIndex   int          `json:"failed_index"`
	Events        []Event      `json:"events"`
}

// Encode 输出规范化 JSON。encoding/json 对 map key 排序，
// 因此相同输入的两次 run 产出逐字节相同的编码。
func (l *Ledger) Encode() ([]byte, error) {
	return json.Marshal(ledgerEnvelope{
		SchemaVersion: LedgerSchemaVersion,
		Status:        l.status,
		Failure:       l.failure,
		FailedIndex:   l.failedIndex,
		Events:        l.events,
	})
}
