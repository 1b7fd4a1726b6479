package features

import (
	"context"
	"math"
	"testing"

	"backlab/internal/market"
	"backlab/internal/runspec"
	"backlab/internal/sim"
	"backlab/internal/sim/fill"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeSignal 逐索引抄录特征值，便于对帧内容做断言。
type probeSignal struct {
	columns  []string
	recorded map[string][]float64
}

func (p *probeSignal) Name() string       { return "probe" }
func (p *probeSignal) Requires() []string { return p.columns }
func (p *probeSignal) Generate(view *sim.Fence) ([]sim.Signal, error) {
	for _, col := range p.columns {
		v, err := view.Feature(col)
		if err != nil {
			return nil, err
		}
		p.recorded[col] = append(p.recorded[col], v)
	}
	return nil, nil
}

func trendCandles(n int) []market.Candle {
	candles := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60000,
			CloseTime: int64(i+1)*60000 - 1,
			Open:      c - 0.5, High: c + 1, Low: c - 1, Close: c,
			Volume: 1,
		}
	}
	return candles
}

// recordFeatures 跑一遍特征流水线并返回各列的逐索引取值。
func recordFeatures(t *testing.T, refs []runspec.PluginRef, columns []string, candles []market.Candle) map[string][]float64 {
	t.Helper()
	probe := &probeSignal{columns: columns, recorded: make(map[string][]float64)}
	reg := sim.NewRegistry()
	Register(reg)
	fill.Register(reg)
	reg.RegisterSignal("probe", func(params map[string]any) (sim.SignalPlugin, error) {
		return probe, nil
	})
	spec := runspec.RunSpec{
		Name: "feature-probe", Symbol: "BTCUSDT", Timeframe: "1m",
		StartTS: 0, EndTS: int64(len(candles)) * 60000,
		InitialCapital: 10000,
		Features:       refs,
		Signals:        []runspec.PluginRef{{Name: "probe"}},
		Fill:           runspec.PluginRef{Name: "close"},
	}
	runner, err := sim.NewRunner(reg, spec, candles, nil)
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	for _, col := range columns {
		require.Len(t, probe.recorded[col], len(candles))
	}
	return probe.recorded
}

func TestEMATrendWarmupAndValues(t *testing.T) {
	recorded := recordFeatures(t,
		[]runspec.PluginRef{{Name: "ema_trend", Params: map[string]any{"fast": 3, "mid": 5, "slow": 8}}},
		[]string{"ema_fast", "ema_mid", "ema_slow"},
		trendCandles(30))

	// warm-up 不足写 NaN
	assert.True(t, math.IsNaN(recorded["ema_fast"][0]))
	assert.True(t, math.IsNaN(recorded["ema_slow"][6]))
	// 周期满足后必须有值，且快线在单边上行里高于慢线
	assert.False(t, math.IsNaN(recorded["ema_fast"][10]))
	assert.False(t, math.IsNaN(recorded["ema_slow"][10]))
	assert.Greater(t, recorded["ema_fast"][29], recorded["ema_slow"][29])
}

func TestRSIWarmupAndBounds(t *testing.T) {
	recorded := recordFeatures(t,
		[]runspec.PluginRef{{Name: "rsi", Params: map[string]any{"period": 5}}},
		[]string{"rsi"},
		trendCandles(30))

	assert.True(t, math.IsNaN(recorded["rsi"][3]))
	for i := 6; i < 30; i++ {
		v := recorded["rsi"][i]
		require.False(t, math.IsNaN(v), "索引 %d 处 rsi 不应为 NaN", i)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	// 单边上行时 RSI 应贴近超买区
	assert.Greater(t, recorded["rsi"][29], 70.0)
}

func TestATRPositiveAfterWarmup(t *testing.T) {
	recorded := recordFeatures(t,
		[]runspec.PluginRef{{Name: "atr", Params: map[string]any{"period": 3}}},
		[]string{"atr"},
		trendCandles(20))

	assert.True(t, math.IsNaN(recorded["atr"][1]))
	for i := 5; i < 20; i++ {
		require.False(t, math.IsNaN(recorded["atr"][i]))
		assert.Greater(t, recorded["atr"][i], 0.0)
	}
}

func TestRollingReturnAndPeak(t *testing.T) {
	recorded := recordFeatures(t,
		[]runspec.PluginRef{{Name: "rolling_return", Params: map[string]any{"window": 5}}},
		[]string{"log_return", "rolling_peak"},
		trendCandles(10))

	assert.True(t, math.IsNaN(recorded["log_return"][0]), "首根无前收，对数收益为 NaN")
	assert.InDelta(t, math.Log(101.0/100.0), recorded["log_return"][1], 1e-12)
	// 上行序列里滚动峰值就是当前 High
	assert.InDelta(t, 104.0+1, recorded["rolling_peak"][4], 1e-12)
	assert.InDelta(t, 109.0+1, recorded["rolling_peak"][9], 1e-12)
}

func TestMACDWarmup(t *testing.T) {
	recorded := recordFeatures(t,
		[]runspec.PluginRef{{Name: "macd", Params: map[string]any{"fast": 3, "slow": 6, "signal": 3}}},
		[]string{"macd", "macd_signal", "macd_hist"},
		trendCandles(40))

	assert.True(t, math.IsNaN(recorded["macd"][4]))
	assert.False(t, math.IsNaN(recorded["macd"][20]))
	assert.False(t, math.IsNaN(recorded["macd_signal"][20]))
	// 上行趋势 macd 为正
	assert.Greater(t, recorded["macd"][39], 0.0)
}

func TestPluginContracts(t *testing.T) {
	plugin, err := newEMATrend(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ema_fast", "ema_mid", "ema_slow"}, plugin.Outputs())
	assert.Empty(t, plugin.Requires())

	plugin, err = newATR(map[string]any{"period": "7"})
	require.NoError(t, err)
	assert.Equal(t, []string{"atr"}, plugin.Outputs())
	assert.Equal(t, 7, plugin.(*ATR).period, "字符串形态的参数也要能解析")
}
