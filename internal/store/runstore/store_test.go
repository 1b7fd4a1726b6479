package runstore

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"backlab/internal/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	store, err := NewRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRun(t *testing.T, store *RunStore, id string) {
	t.Helper()
	require.NoError(t, store.CreateRun(RunModel{
		ID: id, Name: "demo", Symbol: "BTCUSDT", Timeframe: "1m",
		StartTS: 60000, EndTS: 300000, Seed: 42,
		SchemaVersion: 1, FailedIndex: -1,
		SpecJSON: []byte(`{"name":"demo"}`),
	}))
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	seedRun(t, store, "run-1")

	rec, err := store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusQueued, rec.Status)
	assert.NotZero(t, rec.CreatedAtUnix)

	require.NoError(t, store.MarkRunning("run-1"))
	rec, err = store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, rec.Status)

	metrics := &sim.Metrics{Trades: 2, WinRate: 0.5, FinalCapital: 10750}
	require.NoError(t, store.FinishRun("run-1", RunStatusComplete, "", -1, metrics))
	rec, err = store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, rec.Status)
	assert.NotZero(t, rec.FinishedAtUnix)

	var decoded sim.Metrics
	require.NoError(t, json.Unmarshal(rec.MetricsJSON, &decoded))
	assert.Equal(t, 2, decoded.Trades)
	assert.Equal(t, 10750.0, decoded.FinalCapital)
}

func TestRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun("ghost")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, store.MarkRunning("ghost"), ErrRunNotFound)
	assert.ErrorIs(t, store.DeleteRun("ghost"), ErrRunNotFound)
}

func TestCreateRunRejectsEmptyID(t *testing.T) {
	store := newTestStore(t)
	require.Error(t, store.CreateRun(RunModel{ID: "  "}))
}

func TestSaveAndListEvents(t *testing.T) {
	store := newTestStore(t)
	seedRun(t, store, "run-ev")

	events := []sim.Event{
		{EventID: "evt-00000001", Seq: 1, Type: sim.EventFill, Timestamp: 59999, Index: 0,
			Price: 100, Quantity: 10, Metadata: map[string]any{"kind": "enter", "side": "long"}},
		{EventID: "evt-00000002", Seq: 2, Type: sim.EventStopChange, Timestamp: 119999, Index: 1, Price: 95},
	}
	require.NoError(t, store.SaveEvents("run-ev", events))

	rows, err := store.ListEvents("run-ev")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "evt-00000001", rows[0].EventID)
	assert.Equal(t, string(sim.EventFill), rows[0].Type)
	assert.Equal(t, int64(2), rows[1].Seq)
	assert.Empty(t, rows[1].MetadataJSON)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(rows[0].MetadataJSON, &meta))
	assert.Equal(t, "long", meta["side"])
}

func TestSaveTradesAndSnapshots(t *testing.T) {
	store := newTestStore(t)
	seedRun(t, store, "run-tr")

	trades := []sim.Trade{
		{EntryTS: 59999, ExitTS: 239999, EntryPrice: 100, ExitPrice: 110, Size: 10, Side: "long", PnL: 100},
		{EntryTS: 299999, ExitTS: 359999, EntryPrice: 110, ExitPrice: 115, Size: 5, Side: "short", PnL: -25},
	}
	require.NoError(t, store.SaveTrades("run-tr", trades))
	gotTrades, err := store.ListTrades("run-tr")
	require.NoError(t, err)
	require.Len(t, gotTrades, 2)
	assert.Equal(t, "long", gotTrades[0].Side)
	assert.Equal(t, 100.0, gotTrades[0].PnL)

	points := []sim.EquityPoint{
		{TS: 59999, Equity: 1000, Drawdown: 0},
		{TS: 119999, Equity: 1100, Drawdown: 0},
		{TS: 179999, Equity: 1050, Drawdown: (1100.0 - 1050.0) / 1100.0},
	}
	require.NoError(t, store.SaveSnapshots("run-tr", points))
	gotPoints, err := store.ListSnapshots("run-tr")
	require.NoError(t, err)
	require.Len(t, gotPoints, 3)
	assert.Equal(t, 1100.0, gotPoints[1].Equity)
	assert.InDelta(t, 50.0/1100.0, gotPoints[2].Drawdown, 1e-12)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateRun(RunModel{ID: "old", CreatedAtUnix: 100}))
	require.NoError(t, store.CreateRun(RunModel{ID: "new", CreatedAtUnix: 200}))

	rows, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "new", rows[0].ID)

	rows, err = store.ListRuns(1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestDeleteRunCascades(t *testing.T) {
	store := newTestStore(t)
	seedRun(t, store, "run-del")
	require.NoError(t, store.SaveEvents("run-del", []sim.Event{{EventID: "evt-00000001", Seq: 1, Type: sim.EventFill}}))
	require.NoError(t, store.SaveTrades("run-del", []sim.Trade{{Side: "long"}}))
	require.NoError(t, store.SaveSnapshots("run-del", []sim.EquityPoint{{TS: 1, Equity: 1}}))

	require.NoError(t, store.DeleteRun("run-del"))

	_, err := store.GetRun("run-del")
	assert.ErrorIs(t, err, ErrRunNotFound)
	events, err := store.ListEvents("run-del")
	require.NoError(t, err)
	assert.Empty(t, events)
	trades, err := store.ListTrades("run-del")
	require.NoError(t, err)
	assert.Empty(t, trades)
	snaps, err := store.ListSnapshots("run-del")
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
