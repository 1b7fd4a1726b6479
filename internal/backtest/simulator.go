package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"backlab/internal/config"
	"backlab/internal/logger"
	"backlab/internal/runspec"
	"backlab/internal/sim"
	"backlab/internal/store/runstore"
)

// RunResult 汇总一次回放的全部产物。
// 账本是事实来源，交易/指标/权益曲线都由它派生。
type RunResult struct {
	RunID   string
	Status  runstore.RunStatus
	Ledger  *sim.Ledger
	Trades  []sim.Trade
	Metrics sim.Metrics
	Equity  []sim.EquityPoint
}

// Service 负责运行编排：加载数据、驱动回放循环、持久化结果。
// 核心循环本身是单线程的；并行只发生在不同 run 之间，
// 数量由 runs.max_concurrent 限制。
type Service struct {
	store *Store
	runs  *runstore.RunStore
	reg   *sim.Registry
	sem   chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewService 创建运行编排服务。
func NewService(cfg *config.Config, store *Store, runs *runstore.RunStore, reg *sim.Registry) *Service {
	maxConcurrent := 4
	if cfg != nil && cfg.Runs.MaxConcurrent > 0 {
		maxConcurrent = cfg.Runs.MaxConcurrent
	}
	return &Service{
		store:   store,
		runs:    runs,
		reg:     reg,
		sem:     make(chan struct{}, maxConcurrent),
		cancels: make(map[string]context.CancelFunc),
	}
}

// StartRun 异步启动一次回放，立即返回 run ID。
// 进度与结果通过 RunStore 查询。
func (s *Service) StartRun(ctx context.Context, spec runspec.RunSpec) (string, error) {
	runID, err := s.register(spec)
	if err != nil {
		return "", err
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancels[runID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.cancels, runID)
			s.mu.Unlock()
		}()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()
		if _, err := s.execute(runCtx, runID, spec); err != nil {
			logger.Errorf("run %s 失败: %v", runID, err)
		}
	}()
	return runID, nil
}

// RunSync 同步执行一次回放并返回完整结果。
func (s *Service) RunSync(ctx context.Context, spec runspec.RunSpec) (RunResult, error) {
	runID, err := s.register(spec)
	if err != nil {
		return RunResult{}, err
	}
	return s.execute(ctx, runID, spec)
}

// RunBatch 并行执行一批 RunSpec，任一失败立即取消其余。
// 每个 run 自有 Runner 与账本，互相零共享。
func (s *Service) RunBatch(ctx context.Context, specs []runspec.RunSpec) ([]RunResult, error) {
	results := make([]RunResult, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			s.sem <- struct{}{}
			defer func() { <-s.sem }()
			res, err := s.RunSync(gctx, spec)
			if err != nil {
				return fmt.Errorf("run %s: %w", spec.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Cancel 取消进行中的 run；取消发生在 K 线索引边界。
func (s *Service) Cancel(runID string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[runID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Close 等待所有异步 run 结束。
func (s *Service) Close() {
	s.wg.Wait()
}

// register 校验 RunSpec 并落一条 queued 状态的运行记录。
func (s *Service) register(spec runspec.RunSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	if _, err := ParseTimeframe(spec.Timeframe); err != nil {
		return "", err
	}
	// 解析期错误（未注册插件、列冲突）在排队前暴露。
	if _, err := sim.BuildPipelines(s.reg, spec); err != nil {
		return "", err
	}
	runID := uuid.NewString()
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("编码 RunSpec 失败: %w", err)
	}
	rec := runstore.RunModel{
		ID:            runID,
		Name:          spec.Name,
		Symbol:        strings.ToUpper(spec.Symbol),
		Timeframe:     strings.ToLower(spec.Timeframe),
		StartTS:       spec.StartTS,
		EndTS:         spec.EndTS,
		Seed:          spec.Seed,
		SchemaVersion: sim.LedgerSchemaVersion,
		Status:        runstore.RunStatusQueued,
		SpecJSON:      datatypes.JSON(specJSON),
		CreatedAtUnix: time.Now().Unix(),
		FailedIndex:   -1,
	}
	if err := s.runs.CreateRun(rec); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Service) execute(ctx context.Context, runID string, spec runspec.RunSpec) (RunResult, error) {
	if err := s.runs.MarkRunning(runID); err != nil {
		return RunResult{}, err
	}
	tf, err := ParseTimeframe(spec.Timeframe)
	if err != nil {
		return s.finishFailed(runID, err, -1)
	}
	start, end := tf.AlignRange(spec.StartTS, spec.EndTS)
	if err := s.store.CheckIntegrity(ctx, spec.Symbol, tf, start, end); err != nil {
		return s.finishFailed(runID, err, -1)
	}
	candles, err := s.store.RangeCandles(ctx, spec.Symbol, tf.Key, start, end)
	if err != nil {
		return s.finishFailed(runID, err, -1)
	}
	alerts, err := s.store.RangeAlerts(ctx, spec.Symbol, tf.Key, start, end)
	if err != nil {
		return s.finishFailed(runID, err, -1)
	}

	runner, err := sim.NewRunner(s.reg, spec, candles, alerts)
	if err != nil {
		return s.finishFailed(runID, err, -1)
	}
	started := time.Now()
	ledger, runErr := runner.Run(ctx)
	logger.Infof("run %s 回放 %d 根 K 线，事件 %d 条，耗时 %s，状态 %s",
		runID, len(candles), ledger.Len(), time.Since(started).Round(time.Millisecond), ledger.Status())

	result := RunResult{
		RunID:  runID,
		Status: statusFromLedger(ledger.Status()),
		Ledger: ledger,
	}
	// 失败/中止的部分账本同样持久化，便于事后排查；
	// 派生产物只对完整账本计算。
	if err := s.runs.SaveEvents(runID, ledger.Events()); err != nil {
		return result, err
	}
	var metrics *sim.Metrics
	if ledger.Status() == sim.LedgerComplete {
		events := ledger.Events()
		result.Trades = sim.DeriveTrades(events)
		result.Metrics = sim.DeriveMetrics(events, candles, spec.InitialCapital)
		result.Equity = sim.DeriveEquity(events, candles, spec.InitialCapital)
		metrics = &result.Metrics
		if err := s.runs.SaveTrades(runID, result.Trades); err != nil {
			return result, err
		}
		if err := s.runs.SaveSnapshots(runID, result.Equity); err != nil {
			return result, err
		}
	}
	failure, failedIndex := ledger.Failure()
	if err := s.runs.FinishRun(runID, result.Status, failure, failedIndex, metrics); err != nil {
		return result, err
	}
	return result, runErr
}

func (s *Service) finishFailed(runID string, cause error, failedIndex int) (RunResult, error) {
	if err := s.runs.FinishRun(runID, runstore.RunStatusFailed, cause.Error(), failedIndex, nil); err != nil {
		logger.Errorf("标记 run %s 失败状态出错: %v", runID, err)
	}
	return RunResult{RunID: runID, Status: runstore.RunStatusFailed}, cause
}

func statusFromLedger(status sim.LedgerStatus) runstore.RunStatus {
	switch status {
	case sim.LedgerComplete:
		return runstore.RunStatusComplete
	case sim.LedgerAborted:
		return runstore.RunStatusAborted
	default:
		return runstore.RunStatusFailed
	}
}
