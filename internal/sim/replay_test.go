package sim

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backlab/internal/market"
	"backlab/internal/runspec"
)

func testCandles(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			OpenTime:  int64(i) * 60000,
			CloseTime: int64(i+1)*60000 - 1,
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
			Interval:  "1m",
		}
	}
	return out
}

// 恒等特征：把收盘价原样写进列。
type closeFeature struct{ column string }

func (f closeFeature) Name() string       { return "close_id" }
func (f closeFeature) Outputs() []string  { return []string{f.column} }
func (f closeFeature) Requires() []string { return nil }
func (f closeFeature) Compute(view *Fence) (map[string]float64, error) {
	return map[string]float64{f.column: view.Candle().Close}, nil
}

type failingFeature struct{ at int }

func (f failingFeature) Name() string       { return "boom" }
func (f failingFeature) Outputs() []string  { return []string{"boom"} }
func (f failingFeature) Requires() []string { return nil }
func (f failingFeature) Compute(view *Fence) (map[string]float64, error) {
	if view.Index() == f.at {
		return nil, fmt.Errorf("爆炸")
	}
	return map[string]float64{"boom": 0}, nil
}

// 偷看未来的特征：在固定索引读下一根 K 线。
type lookaheadFeature struct{ at int }

func (f lookaheadFeature) Name() string       { return "peek" }
func (f lookaheadFeature) Outputs() []string  { return []string{"peek"} }
func (f lookaheadFeature) Requires() []string { return nil }
func (f lookaheadFeature) Compute(view *Fence) (map[string]float64, error) {
	if view.Index() == f.at {
		next, err := view.CandleAt(view.Index() + 1)
		if err != nil {
			return nil, err
		}
		return map[string]float64{"peek": next.Close}, nil
	}
	return map[string]float64{"peek": view.Candle().Close}, nil
}

// 脚本信号：在固定索引发 ENTER / EXIT。
type scriptSignal struct{ enterAt, exitAt int }

func (s scriptSignal) Name() string       { return "script" }
func (s scriptSignal) Requires() []string { return nil }
func (s scriptSignal) Generate(view *Fence) ([]Signal, error) {
	switch view.Index() {
	case s.enterAt:
		return []Signal{{Type: SignalEnter, Reason: "scripted enter"}}, nil
	case s.exitAt:
		return []Signal{{Type: SignalExit, Reason: "scripted exit"}}, nil
	}
	return nil, nil
}

// 直通策略：空仓见 ENTER 开多，持仓见 EXIT 全平。
type takerPolicy struct{}

func (p takerPolicy) Name() string { return "taker" }
func (p takerPolicy) Execute(tx *Txn, candle market.Candle, signals []Signal) error {
	st := tx.State()
	for _, sig := range signals {
		switch {
		case sig.Type == SignalEnter && st.Status == StatusFlat:
			tx.MarkSignal(sig)
			tx.SubmitEnter(SideLong, 0, sig.Reason)
			return nil
		case sig.Type == SignalExit && st.Status != StatusFlat:
			tx.MarkSignal(sig)
			tx.SubmitExit(0, sig.Reason)
			return nil
		}
	}
	return nil
}

// 标记策略：每根线落一条 STOP_CHANGE，用于校验执行次序。
type markerPolicy struct{ id string }

func (p markerPolicy) Name() string { return p.id }
func (p markerPolicy) Execute(tx *Txn, candle market.Candle, signals []Signal) error {
	tx.AdjustStop(1, "marker")
	return nil
}

type greedyPolicy struct{}

func (p greedyPolicy) Name() string { return "greedy" }
func (p greedyPolicy) Execute(tx *Txn, candle market.Candle, signals []Signal) error {
	// 无视仓位状态盲目开仓，第二根线必然触发 enter-while-open。
	tx.SubmitEnter(SideLong, 1, "greedy")
	return nil
}

type closeFillModel struct{}

func (closeFillModel) Name() string { return "close" }
func (closeFillModel) Fill(intent OrderIntent, candle market.Candle) (float64, float64, error) {
	return candle.Close, intent.Quantity, nil
}

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.RegisterFeature("close_id", func(params map[string]any) (FeaturePlugin, error) {
		return closeFeature{column: "close_id"}, nil
	})
	reg.RegisterFeature("boom", func(params map[string]any) (FeaturePlugin, error) {
		return failingFeature{at: 2}, nil
	})
	reg.RegisterFeature("peek", func(params map[string]any) (FeaturePlugin, error) {
		at, _ := runspec.ParamNumber(params, "at")
		return lookaheadFeature{at: int(at)}, nil
	})
	reg.RegisterSignal("script", func(params map[string]any) (SignalPlugin, error) {
		enter, _ := runspec.ParamNumber(params, "enter_at")
		exit, ok := runspec.ParamNumber(params, "exit_at")
		if !ok {
			exit = -1
		}
		return scriptSignal{enterAt: int(enter), exitAt: int(exit)}, nil
	})
	reg.RegisterPolicy("taker", func(params map[string]any) (ExecutionPolicy, error) {
		return takerPolicy{}, nil
	})
	reg.RegisterPolicy("marker", func(params map[string]any) (ExecutionPolicy, error) {
		id, _ := runspec.ParamString(params, "id")
		return markerPolicy{id: id}, nil
	})
	reg.RegisterPolicy("greedy", func(params map[string]any) (ExecutionPolicy, error) {
		return greedyPolicy{}, nil
	})
	reg.RegisterFill("close", func(params map[string]any, seed int64) (FillModel, error) {
		return closeFillModel{}, nil
	})
	return reg
}

func baseSpec() runspec.RunSpec {
	return runspec.RunSpec{
		Name:           "unit",
		Symbol:         "BTCUSDT",
		Timeframe:      "1m",
		StartTS:        0,
		EndTS:          600000,
		InitialCapital: 10000,
		Seed:           1,
		Features:       []runspec.PluginRef{{Name: "close_id"}},
		Signals: []runspec.PluginRef{{
			Name:   "script",
			Params: map[string]any{"enter_at": 1, "exit_at": 3},
		}},
		Policies: []runspec.PolicyRef{{Name: "taker", Priority: 10}},
		Fill:     runspec.PluginRef{Name: "close"},
	}
}

func TestRunnerFlatFillScenario(t *testing.T) {
	candles := testCandles(100, 100, 110, 120, 120)
	runner, err := NewRunner(testRegistry(), baseSpec(), candles, nil)
	require.NoError(t, err)

	ledger, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LedgerComplete, ledger.Status())

	var fills []Event
	for _, evt := range ledger.Events() {
		if evt.Type == EventFill {
			fills = append(fills, evt)
		}
	}
	require.Len(t, fills, 2)
	// 开仓：收盘价 100 成交，默认数量 = 资金/价格。
	assert.Equal(t, 100.0, fills[0].Price)
	assert.Equal(t, 100.0, fills[0].Quantity)
	assert.Equal(t, "enter", fills[0].Metadata["kind"])
	// 平仓：收盘价 120 全平，盈亏 2000。
	assert.Equal(t, 120.0, fills[1].Price)
	assert.Equal(t, 100.0, fills[1].Quantity)
	assert.Equal(t, 2000.0, fills[1].Metadata["pnl"])
	assert.Equal(t, StatusFlat, runner.State().Status)
	assert.Equal(t, 12000.0, runner.State().Capital)
}

func TestRunnerDeterminism(t *testing.T) {
	candles := testCandles(100, 101, 99, 105, 110, 108, 112)
	spec := baseSpec()

	run := func() []byte {
		runner, err := NewRunner(testRegistry(), spec, candles, nil)
		require.NoError(t, err)
		_, err = runner.Run(context.Background())
		require.NoError(t, err)
		raw, err := runner.Ledger().Encode()
		require.NoError(t, err)
		return raw
	}
	first := run()
	second := run()
	assert.Equal(t, first, second, "相同输入两次回放的账本编码必须逐字节一致")
}

func TestRunnerEventIDsSequential(t *testing.T) {
	candles := testCandles(100, 101, 102, 103, 104)
	runner, err := NewRunner(testRegistry(), baseSpec(), candles, nil)
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	events := runner.Ledger().Events()
	require.NotEmpty(t, events)
	for i, evt := range events {
		assert.Equal(t, int64(i+1), evt.Seq)
		assert.Equal(t, fmt.Sprintf("evt-%08d", i+1), evt.EventID)
	}
}

func TestRunnerFeatureFailureAbortsRun(t *testing.T) {
	spec := baseSpec()
	spec.Features = []runspec.PluginRef{{Name: "boom"}}
	candles := testCandles(100, 101, 102, 103)
	runner, err := NewRunner(testRegistry(), spec, candles, nil)
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.Error(t, err)
	var fce *FeatureComputationError
	require.True(t, errors.As(err, &fce))
	assert.Equal(t, "boom", fce.Plugin)
	assert.Equal(t, 2, fce.Index)

	assert.Equal(t, LedgerFailed, runner.Ledger().Status())
	failure, idx := runner.Ledger().Failure()
	assert.Contains(t, failure, "boom")
	assert.Equal(t, 2, idx)
}

func TestRunnerLookaheadFeatureAbortsRun(t *testing.T) {
	spec := baseSpec()
	spec.Features = []runspec.PluginRef{{Name: "peek", Params: map[string]any{"at": 2}}}
	candles := testCandles(100, 101, 102, 103, 104)
	runner, err := NewRunner(testRegistry(), spec, candles, nil)
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.Error(t, err)
	var fce *FeatureComputationError
	require.True(t, errors.As(err, &fce))
	assert.Equal(t, "peek", fce.Plugin)
	assert.Equal(t, 2, fce.Index)
	var cv *CausalityViolation
	require.True(t, errors.As(err, &cv), "越界读必须以 CausalityViolation 终止整个 run")
	assert.Equal(t, 2, cv.Index)
	assert.Equal(t, 3, cv.Requested)

	assert.Equal(t, LedgerFailed, runner.Ledger().Status())
	_, idx := runner.Ledger().Failure()
	assert.Equal(t, 2, idx)
}

func TestRunnerEnterWhileOpenIsFatal(t *testing.T) {
	spec := baseSpec()
	spec.Policies = []runspec.PolicyRef{{Name: "greedy", Priority: 1}}
	candles := testCandles(100, 101, 102)
	runner, err := NewRunner(testRegistry(), spec, candles, nil)
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.Error(t, err)
	var fme *FillModelError
	require.True(t, errors.As(err, &fme))
	assert.Equal(t, LedgerFailed, runner.Ledger().Status())
}

func TestRunnerContextCancelAborts(t *testing.T) {
	candles := testCandles(100, 101, 102, 103)
	runner, err := NewRunner(testRegistry(), baseSpec(), candles, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, LedgerAborted, runner.Ledger().Status())
}

func TestPolicyOrderFollowsPriorityThenDeclaration(t *testing.T) {
	order := func(policies []runspec.PolicyRef) []string {
		spec := baseSpec()
		spec.Signals = nil
		spec.Policies = policies
		candles := testCandles(100)
		runner, err := NewRunner(testRegistry(), spec, candles, nil)
		require.NoError(t, err)
		_, err = runner.Run(context.Background())
		require.NoError(t, err)
		var got []string
		for _, evt := range runner.Ledger().Events() {
			if evt.Type == EventStopChange {
				got = append(got, evt.Metadata["policy"].(string))
			}
		}
		return got
	}

	got := order([]runspec.PolicyRef{
		{Name: "marker", Priority: 20, Params: map[string]any{"id": "b"}},
		{Name: "marker", Priority: 10, Params: map[string]any{"id": "a"}},
	})
	assert.Equal(t, []string{"a", "b"}, got, "低 priority 数值先执行")

	got = order([]runspec.PolicyRef{
		{Name: "marker", Priority: 10, Params: map[string]any{"id": "b"}},
		{Name: "marker", Priority: 10, Params: map[string]any{"id": "a"}},
	})
	assert.Equal(t, []string{"b", "a"}, got, "同 priority 按声明序执行")
}

func TestBuildPipelinesResolutionErrors(t *testing.T) {
	reg := testRegistry()

	spec := baseSpec()
	spec.Features = []runspec.PluginRef{{Name: "nonexistent"}}
	_, err := BuildPipelines(reg, spec)
	var pre *PipelineResolutionError
	require.True(t, errors.As(err, &pre))
	assert.Equal(t, "feature", pre.Kind)
	assert.Equal(t, "nonexistent", pre.Name)

	spec = baseSpec()
	spec.Fill = runspec.PluginRef{Name: "vwap"}
	_, err = BuildPipelines(reg, spec)
	require.True(t, errors.As(err, &pre))
	assert.Equal(t, "fill model", pre.Kind)
}

func TestBuildPipelinesColumnCollision(t *testing.T) {
	spec := baseSpec()
	spec.Features = []runspec.PluginRef{{Name: "close_id"}, {Name: "close_id"}}
	_, err := BuildPipelines(testRegistry(), spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "冲突")
}
