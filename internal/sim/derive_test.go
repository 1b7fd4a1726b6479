package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureLedger 构造一条覆盖两笔交易的固定事件序列。
func fixtureLedger() *Ledger {
	ledger := NewLedger()
	add := func(evt Event) { ledger.append(evt) }

	add(Event{Type: EventSignalFire, Timestamp: 59999, Index: 0,
		Metadata: map[string]any{"policy": "entry", "signal": "ENTER"}})
	add(Event{Type: EventFill, Timestamp: 59999, Index: 0, Price: 100, Quantity: 10,
		Metadata: map[string]any{"kind": "enter", "side": "long", "policy": "entry"}})
	add(Event{Type: EventStopChange, Timestamp: 119999, Index: 1, Price: 95,
		Metadata: map[string]any{"policy": "stop_loss", "prev_stop": 0.0}})
	add(Event{Type: EventPositionUpdate, Timestamp: 179999, Index: 2, Price: 120,
		Metadata: map[string]any{"policy": "trailing_stop", "field": "trailing_ref"}})
	add(Event{Type: EventStopChange, Timestamp: 179999, Index: 2, Price: 108,
		Metadata: map[string]any{"policy": "trailing_stop", "prev_stop": 95.0}})
	add(Event{Type: EventFill, Timestamp: 239999, Index: 3, Price: 110, Quantity: 10,
		Metadata: map[string]any{"kind": "exit", "side": "long", "policy": "trailing_stop", "pnl": 100.0}})

	add(Event{Type: EventFill, Timestamp: 299999, Index: 4, Price: 110, Quantity: 5,
		Metadata: map[string]any{"kind": "enter", "side": "short", "policy": "entry"}})
	add(Event{Type: EventFill, Timestamp: 359999, Index: 5, Price: 115, Quantity: 5,
		Metadata: map[string]any{"kind": "exit", "side": "short", "policy": "stop_loss", "pnl": -25.0}})
	ledger.seal()
	return ledger
}

func TestDeriveTradesPairsFills(t *testing.T) {
	trades := DeriveTrades(fixtureLedger().Events())
	require.Len(t, trades, 2)

	assert.Equal(t, "long", trades[0].Side)
	assert.Equal(t, 100.0, trades[0].EntryPrice)
	assert.Equal(t, 110.0, trades[0].ExitPrice)
	assert.Equal(t, 100.0, trades[0].PnL)

	assert.Equal(t, "short", trades[1].Side)
	assert.Equal(t, -25.0, trades[1].PnL, "空头逆势亏损")
}

func TestDeriveIsIdempotent(t *testing.T) {
	events := fixtureLedger().Events()
	candles := testCandles(100, 105, 120, 110, 110, 115)

	first := DeriveMetrics(events, candles, 1000)
	second := DeriveMetrics(events, candles, 1000)
	assert.Equal(t, first, second, "相同账本两次派生结果必须一致")

	assert.Equal(t, DeriveTrades(events), DeriveTrades(events))
	assert.Equal(t, DeriveEquity(events, candles, 1000), DeriveEquity(events, candles, 1000))
}

func TestDeriveMetricsAggregation(t *testing.T) {
	events := fixtureLedger().Events()
	candles := testCandles(100, 105, 120, 110, 110, 115)

	m := DeriveMetrics(events, candles, 1000)
	assert.Equal(t, 2, m.Trades)
	assert.Equal(t, 1, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.Equal(t, 0.5, m.WinRate)
	assert.Equal(t, 1000.0, m.InitialCapital)
	assert.Equal(t, 1075.0, m.FinalCapital, "1000 + 100 - 25")
	assert.InDelta(t, 0.075, m.TotalReturn, 1e-9)
	assert.InDelta(t, 4.0, m.ProfitFactor, 1e-9)
	assert.Greater(t, m.MaxDrawdown, 0.0, "空头被止损带来回撤")
}

func TestDeriveEquityTracksUnrealized(t *testing.T) {
	events := fixtureLedger().Events()
	candles := testCandles(100, 105, 120, 110, 110, 115)

	equity := DeriveEquity(events, candles, 1000)
	require.Len(t, equity, 6)
	assert.Equal(t, 1000.0, equity[0].Equity, "开仓当根浮盈为 0")
	assert.Equal(t, 1050.0, equity[1].Equity, "10 × (105-100)")
	assert.Equal(t, 1200.0, equity[2].Equity)
	assert.Equal(t, 1100.0, equity[3].Equity, "平仓后只剩已实现")
	assert.Equal(t, 1075.0, equity[5].Equity)
	assert.InDelta(t, (1200.0-1075.0)/1200.0, equity[5].Drawdown, 1e-9)
}
