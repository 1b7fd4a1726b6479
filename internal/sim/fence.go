package sim

import (
	"backlab/internal/market"
)

// Fence 是交给插件的能力对象：只持有当前索引及之前的数据。
// K 线切片在构造时就截断到 idx+1，插件拿不到完整序列的引用；
// 特征列走显式越界检查，越界返回 CausalityViolation 而不是陈旧值。
type Fence struct {
	candles []market.Candle
	alerts  []market.Alert
	frame   *FeatureFrame
	idx     int
}

func newFence(candles []market.Candle, alerts []market.Alert, frame *FeatureFrame, idx int) *Fence {
	return &Fence{
		candles: candles[:idx+1],
		alerts:  alerts,
		frame:   frame,
		idx:     idx,
	}
}

// Index 返回当前回放索引。
func (f *Fence) Index() int { return f.idx }

// Candle 返回当前索引的 K 线。
func (f *Fence) Candle() market.Candle { return f.candles[f.idx] }

// CandleAt 返回索引 i 的 K 线；i > 当前索引触发 CausalityViolation。
func (f *Fence) CandleAt(i int) (market.Candle, error) {
	if i > f.idx {
		return market.Candle{}, &CausalityViolation{Index: f.idx, Requested: i}
	}
	if i < 0 {
		return market.Candle{}, &CausalityViolation{Index: f.idx, Requested: i}
	}
	return f.candles[i], nil
}

// Window 返回截止当前索引的最近 n 根 K 线（不足 n 时返回全部）。
func (f *Fence) Window(n int) []market.Candle {
	if n <= 0 {
		return nil
	}
	start := len(f.candles) - n
	if start < 0 {
		start = 0
	}
	return f.candles[start:]
}

// Closes 返回最近 n 根收盘价。
func (f *Fence) Closes(n int) []float64 {
	return market.Closes(f.Window(n))
}

// Highs 返回最近 n 根最高价。
func (f *Fence) Highs(n int) []float64 {
	return market.Highs(f.Window(n))
}

// Lows 返回最近 n 根最低价。
func (f *Fence) Lows(n int) []float64 {
	return market.Lows(f.Window(n))
}

// Feature 读取当前索引的特征值；同一 pass 内更早插件写入的列可见。
func (f *Fence) Feature(name string) (float64, error) {
	return f.frame.valueAt(name, f.idx)
}

// FeatureAt 读取索引 i 的特征值；i > 当前索引触发 CausalityViolation。
func (f *Fence) FeatureAt(name string, i int) (float64, error) {
	if i > f.idx {
		return 0, &CausalityViolation{Index: f.idx, Requested: i, Column: name}
	}
	return f.frame.valueAt(name, i)
}

// FeatureWindow 返回截止当前索引的最近 n 个特征值。
func (f *Fence) FeatureWindow(name string, n int) ([]float64, error) {
	if !f.frame.HasColumn(name) {
		if _, err := f.frame.valueAt(name, f.idx); err != nil {
			return nil, err
		}
	}
	if n <= 0 {
		return nil, nil
	}
	start := f.idx - n + 1
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, f.idx-start+1)
	for i := start; i <= f.idx; i++ {
		v, err := f.frame.valueAt(name, i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Alerts 返回 fired_at 不晚于当前时刻的告警。
func (f *Fence) Alerts() []market.Alert { return f.alerts }

// AlertActive 判断当前时刻是否有告警窗口生效。
func (f *Fence) AlertActive() bool {
	return market.AnyActive(f.alerts, f.Candle().CloseTime)
}
