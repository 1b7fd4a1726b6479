package runstore

import "gorm.io/datatypes"

// RunStatus 是运行记录的生命周期状态。
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
	RunStatusAborted  RunStatus = "aborted"
)

// RunModel 一行对应一次回测运行。
type RunModel struct {
	ID             string         `gorm:"column:id;primaryKey"`
	Name           string         `gorm:"column:name;index"`
	Symbol         string         `gorm:"column:symbol;index"`
	Timeframe      string         `gorm:"column:timeframe"`
	StartTS        int64          `gorm:"column:start_ts"`
	EndTS          int64          `gorm:"column:end_ts"`
	Seed           int64          `gorm:"column:seed"`
	SchemaVersion  int            `gorm:"column:schema_version"`
	Status         RunStatus      `gorm:"column:status;index"`
	FailureMsg     string         `gorm:"column:failure_msg"`
	FailedIndex    int            `gorm:"column:failed_index"`
	SpecJSON       datatypes.JSON `gorm:"column:spec_json;type:TEXT"`
	MetricsJSON    datatypes.JSON `gorm:"column:metrics_json;type:TEXT"`
	CreatedAtUnix  int64          `gorm:"column:created_at"`
	FinishedAtUnix int64          `gorm:"column:finished_at"`
}

func (RunModel) TableName() string { return "runs" }

// EventModel 持久化账本中的单条事件，保持追加顺序。
type EventModel struct {
	ID           int64          `gorm:"column:id;primaryKey"`
	RunID        string         `gorm:"column:run_id;uniqueIndex:idx_run_event,priority:1"`
	Seq          int64          `gorm:"column:seq;uniqueIndex:idx_run_event,priority:2"`
	EventID      string         `gorm:"column:event_id"`
	Type         string         `gorm:"column:type"`
	Timestamp    int64          `gorm:"column:timestamp"`
	CandleIndex  int            `gorm:"column:candle_index"`
	Price        float64        `gorm:"column:price"`
	Quantity     float64        `gorm:"column:quantity"`
	MetadataJSON datatypes.JSON `gorm:"column:metadata_json;type:TEXT"`
}

func (EventModel) TableName() string { return "run_events" }

// TradeModel 是从账本派生的闭合交易。
type TradeModel struct {
	ID         int64   `gorm:"column:id;primaryKey"`
	RunID      string  `gorm:"column:run_id;index"`
	EntryTS    int64   `gorm:"column:entry_ts"`
	ExitTS     int64   `gorm:"column:exit_ts"`
	EntryPrice float64 `gorm:"column:entry_price"`
	ExitPrice  float64 `gorm:"column:exit_price"`
	Size       float64 `gorm:"column:size"`
	Side       string  `gorm:"column:side"`
	PnL        float64 `gorm:"column:pnl"`
}

func (TradeModel) TableName() string { return "run_trades" }

// SnapshotModel 是派生的权益曲线采样点。
type SnapshotModel struct {
	ID       int64   `gorm:"column:id;primaryKey"`
	RunID    string  `gorm:"column:run_id;index"`
	TS       int64   `gorm:"column:ts"`
	Equity   float64 `gorm:"column:equity"`
	Drawdown float64 `gorm:"column:drawdown"`
}

func (SnapshotModel) TableName() string { return "run_snapshots" }
