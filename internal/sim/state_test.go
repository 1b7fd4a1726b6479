package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineOpenCloseRoundTrip(t *testing.T) {
	m := NewMachine(10000)
	assert.Equal(t, StatusFlat, m.Snapshot().Status)

	require.NoError(t, m.open(SideLong, 100, 50))
	st := m.Snapshot()
	assert.Equal(t, StatusLong, st.Status)
	assert.Equal(t, 100.0, st.EntryPrice)
	assert.Equal(t, 100.0, st.TrailingRef, "开仓时锚点取入场价")

	assert.Error(t, m.open(SideLong, 100, 1), "持仓中不能再开")

	pnl, err := m.close(110, 0)
	require.NoError(t, err)
	assert.Equal(t, 500.0, pnl)

	st = m.Snapshot()
	assert.Equal(t, StatusFlat, st.Status)
	assert.Equal(t, 10500.0, st.Capital)
	assert.Zero(t, st.StopPrice, "平仓清空止损")
}

func TestMachinePartialClose(t *testing.T) {
	m := NewMachine(1000)
	require.NoError(t, m.open(SideShort, 200, 10))

	pnl, err := m.close(190, 4)
	require.NoError(t, err)
	assert.Equal(t, 40.0, pnl, "空头下跌获利")
	assert.Equal(t, StatusShort, m.Snapshot().Status)
	assert.Equal(t, 6.0, m.Snapshot().Size)

	// 超量平仓按剩余全平处理。
	_, err = m.close(195, 99)
	require.NoError(t, err)
	assert.Equal(t, StatusFlat, m.Snapshot().Status)
}

func TestMachineCloseWhileFlatRejected(t *testing.T) {
	m := NewMachine(1000)
	_, err := m.close(100, 1)
	assert.Error(t, err)
}

func TestMachineReentryFlagResetOnOpen(t *testing.T) {
	m := NewMachine(1000)
	m.armReentry(true)
	assert.True(t, m.Snapshot().ReentryArmed)

	require.NoError(t, m.open(SideLong, 100, 1))
	assert.False(t, m.Snapshot().ReentryArmed, "开仓消耗再入场标记")
}
