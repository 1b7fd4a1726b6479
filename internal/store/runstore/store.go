package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"backlab/internal/sim"
)

// ErrRunNotFound 查询不存在的运行时返回。
var ErrRunNotFound = errors.New("run not found")

// RunStore 用 Gorm + SQLite 持久化运行记录、账本事件与派生产物。
type RunStore struct {
	db *gorm.DB
}

// NewRunStore 打开（或创建）结果库并迁移表结构。
func NewRunStore(path string) (*RunStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("run store: 路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&RunModel{},
		&EventModel{},
		&TradeModel{},
		&SnapshotModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: 读并发给 HTTP 查询用，写仍串行。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &RunStore{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Close 关闭底层连接。
func (s *RunStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateRun 落一条新的运行记录。
func (s *RunStore) CreateRun(rec RunModel) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("run id 不能为空")
	}
	if rec.Status == "" {
		rec.Status = RunStatusQueued
	}
	if rec.CreatedAtUnix == 0 {
		rec.CreatedAtUnix = time.Now().Unix()
	}
	return s.db.Create(&rec).Error
}

// MarkRunning 把运行标记为进行中。
func (s *RunStore) MarkRunning(runID string) error {
	return s.updateRun(runID, map[string]any{"status": RunStatusRunning})
}

// FinishRun 写入终态、失败信息与指标。
func (s *RunStore) FinishRun(runID string, status RunStatus, failureMsg string, failedIndex int, metrics *sim.Metrics) error {
	updates := map[string]any{
		"status":       status,
		"failure_msg":  failureMsg,
		"failed_index": failedIndex,
		"finished_at":  time.Now().Unix(),
	}
	if metrics != nil {
		raw, err := json.Marshal(metrics)
		if err != nil {
			return fmt.Errorf("编码 metrics 失败: %w", err)
		}
		updates["metrics_json"] = datatypes.JSON(raw)
	}
	return s.updateRun(runID, updates)
}

func (s *RunStore) updateRun(runID string, updates map[string]any) error {
	res := s.db.Model(&RunModel{}).Where("id = ?", runID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// SaveEvents 批量写入账本事件，按 Seq 保序。
func (s *RunStore) SaveEvents(runID string, events []sim.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]EventModel, 0, len(events))
	for _, evt := range events {
		var meta datatypes.JSON
		if len(evt.Metadata) > 0 {
			raw, err := json.Marshal(evt.Metadata)
			if err != nil {
				return fmt.Errorf("编码事件 %s metadata 失败: %w", evt.EventID, err)
			}
			meta = datatypes.JSON(raw)
		}
		rows = append(rows, EventModel{
			RunID:        runID,
			Seq:          evt.Seq,
			EventID:      evt.EventID,
			Type:         string(evt.Type),
			Timestamp:    evt.Timestamp,
			CandleIndex:  evt.Index,
			Price:        evt.Price,
			Quantity:     evt.Quantity,
			MetadataJSON: meta,
		})
	}
	return s.db.CreateInBatches(rows, 200).Error
}

// SaveTrades 写入派生交易。
func (s *RunStore) SaveTrades(runID string, trades []sim.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	rows := make([]TradeModel, 0, len(trades))
	for _, tr := range trades {
		rows = append(rows, TradeModel{
			RunID:      runID,
			EntryTS:    tr.EntryTS,
			ExitTS:     tr.ExitTS,
			EntryPrice: tr.EntryPrice,
			ExitPrice:  tr.ExitPrice,
			Size:       tr.Size,
			Side:       tr.Side,
			PnL:        tr.PnL,
		})
	}
	return s.db.CreateInBatches(rows, 200).Error
}

// SaveSnapshots 写入派生权益曲线。
func (s *RunStore) SaveSnapshots(runID string, points []sim.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}
	rows := make([]SnapshotModel, 0, len(points))
	for _, pt := range points {
		rows = append(rows, SnapshotModel{
			RunID:    runID,
			TS:       pt.TS,
			Equity:   pt.Equity,
			Drawdown: pt.Drawdown,
		})
	}
	return s.db.CreateInBatches(rows, 500).Error
}

// GetRun 读取单条运行记录。
func (s *RunStore) GetRun(runID string) (RunModel, error) {
	var rec RunModel
	err := s.db.Where("id = ?", runID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RunModel{}, ErrRunNotFound
	}
	return rec, err
}

// ListRuns 按创建时间倒序返回最近的运行。
func (s *RunStore) ListRuns(limit int) ([]RunModel, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	var rows []RunModel
	err := s.db.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// ListEvents 按 Seq 升序返回某次运行的全部事件。
func (s *RunStore) ListEvents(runID string) ([]EventModel, error) {
	var rows []EventModel
	err := s.db.Where("run_id = ?", runID).Order("seq ASC").Find(&rows).Error
	return rows, err
}

// ListTrades 返回某次运行的派生交易。
func (s *RunStore) ListTrades(runID string) ([]TradeModel, error) {
	var rows []TradeModel
	err := s.db.Where("run_id = ?", runID).Order("entry_ts ASC").Find(&rows).Error
	return rows, err
}

// ListSnapshots 返回某次运行的权益曲线。
func (s *RunStore) ListSnapshots(runID string) ([]SnapshotModel, error) {
	var rows []SnapshotModel
	err := s.db.Where("run_id = ?", runID).Order("ts ASC").Find(&rows).Error
	return rows, err
}

// DeleteRun 删除运行本体及其事件与派生产物。
func (s *RunStore) DeleteRun(runID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&EventModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", runID).Delete(&TradeModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", runID).Delete(&SnapshotModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", runID).Delete(&RunModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRunNotFound
		}
		return nil
	})
}
