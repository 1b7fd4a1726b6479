package sim

import (
	"context"
	"fmt"

	"backlab/internal/market"
	"backlab/internal/runspec"
)

// Runner 是单线程回放循环：对每根 K 线按固定次序驱动
// 特征 → 信号 → 执行策略 → 成交，把产生的事件追加进账本。
// 单线程是设计要求而非待优化项：跨插件状态变更的次序必须全序。
// 不同 (symbol, RunSpec) 的 Runner 之间零共享状态，可并行运行。
type Runner struct {
	spec    runspec.RunSpec
	pipes   *Pipelines
	candles []market.Candle
	alerts  []market.Alert
	frame   *FeatureFrame
	machine *Machine
	ledger  *Ledger
}

// NewRunner 解析流水线并准备回放；解析失败在这里返回，
// 循环一旦开始就不再出现 PipelineResolutionError。
func NewRunner(reg *Registry, spec runspec.RunSpec, candles []market.Candle, alerts []market.Alert) (*Runner, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("回放需要至少一根 K 线")
	}
	pipes, err := BuildPipelines(reg, spec)
	if err != nil {
		return nil, err
	}
	frame, err := pipes.newFrame(len(candles))
	if err != nil {
		return nil, err
	}
	return &Runner{
		spec:    spec,
		pipes:   pipes,
		candles: candles,
		alerts:  alerts,
		frame:   frame,
		machine: NewMachine(spec.InitialCapital),
		ledger:  NewLedger(),
	}, nil
}

// Ledger 返回账本（运行中亦可读，事件不可变）。
func (r *Runner) Ledger() *Ledger { return r.ledger }

// Frame 返回特征帧。
func (r *Runner) Frame() *FeatureFrame { return r.frame }

// State 返回仓位状态快照。
func (r *Runner) State() PositionState { return r.machine.Snapshot() }

// Run 执行完整回放。错误一律终止整个 run：部分账本保留并
// 标记失败，调用方要重试只能用相同输入整体重跑。
func (r *Runner) Run(ctx context.Context) (*Ledger, error) {
	alertCursor := 0
	for t := range r.candles {
		// 协作式取消只发生在索引边界；被中止的部分账本标记 incomplete。
		select {
		case <-ctx.Done():
			r.ledger.abort(ctx.Err(), t)
			return r.ledger, ctx.Err()
		default:
		}
		candle := r.candles[t]
		ts := candle.CloseTime

		for alertCursor < len(r.alerts) && r.alerts[alertCursor].FiredAt <= ts {
			alertCursor++
		}
		fence := newFence(r.candles, r.alerts[:alertCursor], r.frame, t)

		if err := r.runFeatures(fence, t); err != nil {
			r.ledger.fail(err, t)
			return r.ledger, err
		}
		batch, err := r.runSignals(fence, t, ts)
		if err != nil {
			r.ledger.fail(err, t)
			return r.ledger, err
		}
		intents, err := r.runPolicies(candle, batch, t, ts)
		if err != nil {
			r.ledger.fail(err, t)
			return r.ledger, err
		}
		if err := r.runFills(candle, intents, t); err != nil {
			r.ledger.fail(err, t)
			return r.ledger, err
		}
	}
	r.ledger.seal()
	return r.ledger, nil
}

func (r *Runner) runFeatures(fence *Fence, t int) error {
	for _, plugin := range r.pipes.Features {
		values, err := plugin.Compute(fence)
		if err != nil {
			return &FeatureComputationError{Plugin: plugin.Name(), Index: t, Err: err}
		}
		for name, val := range values {
			if err := r.frame.setAt(name, t, val); err != nil {
				return &FeatureComputationError{Plugin: plugin.Name(), Index: t, Err: err}
			}
		}
	}
	return nil
}

func (r *Runner) runSignals(fence *Fence, t int, ts int64) ([]Signal, error) {
	var batch []Signal
	for _, plugin := range r.pipes.Signals {
		signals, err := plugin.Generate(fence)
		if err != nil {
			return nil, &SignalGenerationError{Plugin: plugin.Name(), Index: t, Err: err}
		}
		for _, sig := range signals {
			sig.Timestamp = ts
			sig.Source = plugin.Name()
			batch = append(batch, sig)
		}
	}
	return batch, nil
}

func (r *Runner) runPolicies(candle market.Candle, batch []Signal, t int, ts int64) ([]OrderIntent, error) {
	var intents []OrderIntent
	for _, policy := range r.pipes.PoliciesInOrder() {
		tx := newTxn(r.machine, r.ledger, policy.Name(), ts, t)
		if err := policy.Execute(tx, candle, batch); err != nil {
			// 更早优先级策略在本索引已落账的事件保留。
			return nil, &ExecutionPolicyError{Plugin: policy.Name(), Index: t, Err: err}
		}
		intents = append(intents, tx.intents...)
	}
	return intents, nil
}

func (r *Runner) runFills(candle market.Candle, intents []OrderIntent, t int) error {
	fill := r.pipes.Fill
	for _, intent := range intents {
		st := r.machine.Snapshot()
		switch intent.Kind {
		case IntentEnter:
			if st.Status != StatusFlat {
				return &FillModelError{Model: fill.Name(), Index: t,
					Err: fmt.Errorf("enter intent 来自 %s，但仓位状态为 %s", intent.Policy, st.Status)}
			}
			if intent.Side != SideLong && intent.Side != SideShort {
				return &FillModelError{Model: fill.Name(), Index: t,
					Err: fmt.Errorf("enter intent 方向非法: %q", intent.Side)}
			}
		case IntentExit:
			if st.Status == StatusFlat {
				return &FillModelError{Model: fill.Name(), Index: t,
					Err: fmt.Errorf("exit intent 来自 %s，但仓位为 FLAT", intent.Policy)}
			}
		default:
			return &FillModelError{Model: fill.Name(), Index: t,
				Err: fmt.Errorf("未知 intent 类型: %q", intent.Kind)}
		}
		price, qty, err := fill.Fill(intent, candle)
		if err != nil {
			return &FillModelError{Model: fill.Name(), Index: t, Err: err}
		}
		switch intent.Kind {
		case IntentEnter:
			if qty <= 0 {
				qty = defaultQuantity(st.Capital, price)
			}
			if err := r.machine.open(intent.Side, price, qty); err != nil {
				return &FillModelError{Model: fill.Name(), Index: t, Err: err}
			}
			r.ledger.append(Event{
				Type:      EventFill,
				Timestamp: intent.Timestamp,
				Index:     t,
				Price:     price,
				Quantity:  qty,
				Metadata: map[string]any{
					"kind":   string(IntentEnter),
					"side":   string(intent.Side),
					"policy": intent.Policy,
					"reason": intent.Reason,
				},
			})
		case IntentExit:
			if qty <= 0 || qty > st.Size {
				qty = st.Size
			}
			pnl, err := r.machine.close(price, qty)
			if err != nil {
				return &FillModelError{Model: fill.Name(), Index: t, Err: err}
			}
			r.ledger.append(Event{
				Type:      EventFill,
				Timestamp: intent.Timestamp,
				Index:     t,
				Price:     price,
				Quantity:  qty,
				Metadata: map[string]any{
					"kind":   string(IntentExit),
					"side":   string(st.Side),
					"policy": intent.Policy,
					"reason": intent.Reason,
					"pnl":    pnl,
				},
			})
		}
	}
	return nil
}

func defaultQuantity(capital, price float64) float64 {
	if price <= 0 || capital <= 0 {
		return 0
	}
	return capital / price
}
