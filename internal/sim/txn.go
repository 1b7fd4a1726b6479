package sim

// Txn 是执行策略可见的状态机句柄：读快照 + 转移原语。
// 每个原语立即生效并向账本追加事件，因此同索引内更低优先级的
// 策略能看到之前策略的变更；事件自带策略名与时间戳，可完整归因。
type Txn struct {
	machine *Machine
	ledger  *Ledger
	policy  string
	ts      int64
	index   int
	intents []OrderIntent
}

func newTxn(machine *Machine, ledger *Ledger, policy string, ts int64, index int) *Txn {
	return &Txn{machine: machine, ledger: ledger, policy: policy, ts: ts, index: index}
}

// State 返回当前仓位状态快照。
func (tx *Txn) State() PositionState { return tx.machine.Snapshot() }

// Index 返回当前回放索引。
func (tx *Txn) Index() int { return tx.index }

// Fills 返回账本到当前为止的 FILL 事件。
// 策略的跨步进度（已触发的止盈档、刚被止损出场）从既有成交
// 推导，不在仓位状态之外另存记忆。
func (tx *Txn) Fills() []Event {
	var fills []Event
	for _, evt := range tx.ledger.events {
		if evt.Type == EventFill {
			fills = append(fills, evt)
		}
	}
	return fills
}

// AdjustStop 调整止损价并落账 STOP_CHANGE 事件。
func (tx *Txn) AdjustStop(price float64, reason string) {
	prev := tx.machine.Snapshot().StopPrice
	tx.machine.adjustStop(price)
	tx.ledger.append(Event{
		Type:      EventStopChange,
		Timestamp: tx.ts,
		Index:     tx.index,
		Price:     price,
		Metadata: map[string]any{
			"policy":    tx.policy,
			"prev_stop": prev,
			"reason":    reason,
		},
	})
}

// SetTrailingRef 更新移动止损参考价并落账 POSITION_UPDATE 事件。
func (tx *Txn) SetTrailingRef(price float64) {
	tx.machine.setTrailingRef(price)
	tx.ledger.append(Event{
		Type:      EventPositionUpdate,
		Timestamp: tx.ts,
		Index:     tx.index,
		Price:     price,
		Metadata: map[string]any{
			"policy": tx.policy,
			"field":  "trailing_ref",
		},
	})
}

// ArmReentry 设置/清除再入场标记并落账 POSITION_UPDATE 事件。
func (tx *Txn) ArmReentry(on bool) {
	tx.machine.armReentry(on)
	armed := 0.0
	if on {
		armed = 1
	}
	tx.ledger.append(Event{
		Type:      EventPositionUpdate,
		Timestamp: tx.ts,
		Index:     tx.index,
		Quantity:  armed,
		Metadata: map[string]any{
			"policy": tx.policy,
			"field":  "reentry_armed",
		},
	})
}

// MarkSignal 把被本策略采纳的信号落账为 SIGNAL_FIRE 事件。
func (tx *Txn) MarkSignal(sig Signal) {
	tx.ledger.append(Event{
		Type:      EventSignalFire,
		Timestamp: tx.ts,
		Index:     tx.index,
		Metadata: map[string]any{
			"policy": tx.policy,
			"signal": string(sig.Type),
			"source": sig.Source,
			"reason": sig.Reason,
		},
	})
}

// SubmitEnter 提交开仓意图，本步末尾经 Fill Model 成交。
func (tx *Txn) SubmitEnter(side PositionSide, qty float64, reason string) {
	tx.intents = append(tx.intents, OrderIntent{
		Kind:      IntentEnter,
		Side:      side,
		Quantity:  qty,
		Policy:    tx.policy,
		Timestamp: tx.ts,
		Reason:    reason,
	})
}

// SubmitExit 提交平仓意图；qty 为 0 表示全部。
func (tx *Txn) SubmitExit(qty float64, reason string) {
	st := tx.machine.Snapshot()
	tx.intents = append(tx.intents, OrderIntent{
		Kind:      IntentExit,
		Side:      st.Side,
		Quantity:  qty,
		Policy:    tx.policy,
		Timestamp: tx.ts,
		Reason:    reason,
	})
}
