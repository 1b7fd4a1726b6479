package sim

import (
	"math"

	"backlab/internal/market"
)

// Trade 由配对相反方向的 FILL 事件派生；绝不独立存储维护。
type Trade struct {
	EntryTS    int64   `json:"entry_ts"`
	ExitTS     int64   `json:"exit_ts"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Size       float64 `json:"size"`
	Side       string  `json:"side"`
	PnL        float64 `json:"pnl"`
}

// Metrics 是对派生 Trade 集与价格序列的纯聚合。
type Metrics struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalReturn    float64 `json:"total_return"`
	WinRate        float64 `json:"win_rate"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	Sharpe         float64 `json:"sharpe"`
	Sortino        float64 `json:"sortino"`
	ProfitFactor   float64 `json:"profit_factor"`
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
}

// EquityPoint 是资金曲线上的一个采样点。
type EquityPoint struct {
	TS       int64   `json:"ts"`
	Equity   float64 `json:"equity"`
	Drawdown float64 `json:"drawdown"`
}

func fillMeta(evt Event, key string) string {
	if evt.Metadata == nil {
		return ""
	}
	s, _ := evt.Metadata[key].(string)
	return s
}

// DeriveTrades 按时间序扫描账本，把每个开仓 FILL 与同一持仓
// 实例的平仓 FILL 配对。相同账本两次派生必然得到相同结果：
// 这里没有任何隐藏状态。
func DeriveTrades(events []Event) []Trade {
	var trades []Trade
	var entryTS int64
	var entryPrice float64
	var side string
	open := false
	for _, evt := range events {
		if evt.Type != EventFill {
			continue
		}
		switch fillMeta(evt, "kind") {
		case string(IntentEnter):
			open = true
			entryTS = evt.Timestamp
			entryPrice = evt.Price
			side = fillMeta(evt, "side")
		case string(IntentExit):
			if !open {
				continue
			}
			direction := 1.0
			if side == string(SideShort) {
				direction = -1
			}
			trades = append(trades, Trade{
				EntryTS:    entryTS,
				ExitTS:     evt.Timestamp,
				EntryPrice: entryPrice,
				ExitPrice:  evt.Price,
				Size:       evt.Quantity,
				Side:       side,
				PnL:        (evt.Price - entryPrice) * evt.Quantity * direction,
			})
		}
	}
	return trades
}

// DeriveEquity 以账本 + 收盘价序列重建逐 K 线资金曲线。
func DeriveEquity(events []Event, candles []market.Candle, initialCapital float64) []EquityPoint {
	realized := initialCapital
	var size, entryPrice, direction float64
	cursor := 0
	fills := make([]Event, 0, len(events))
	for _, evt := range events {
		if evt.Type == EventFill {
			fills = append(fills, evt)
		}
	}
	out := make([]EquityPoint, 0, len(candles))
	peak := initialCapital
	for _, c := range candles {
		for cursor < len(fills) && fills[cursor].Timestamp <= c.CloseTime {
			evt := fills[cursor]
			cursor++
			switch fillMeta(evt, "kind") {
			case string(IntentEnter):
				size = evt.Quantity
				entryPrice = evt.Price
				direction = 1
				if fillMeta(evt, "side") == string(SideShort) {
					direction = -1
				}
			case string(IntentExit):
				qty := evt.Quantity
				if qty > size {
					qty = size
				}
				realized += (evt.Price - entryPrice) * qty * direction
				size -= qty
				if size <= 0 {
					size = 0
				}
			}
		}
		equity := realized
		if size > 0 {
			equity += (c.Close - entryPrice) * size * direction
		}
		if equity > peak {
			peak = equity
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - equity) / peak
		}
		out = append(out, EquityPoint{TS: c.CloseTime, Equity: equity, Drawdown: dd})
	}
	return out
}

// DeriveMetrics 从派生 Trade 集与资金曲线计算绩效指标。
// 输入相同则输出相同；没有别的代码路径能写这些值。
func DeriveMetrics(events []Event, candles []market.Candle, initialCapital float64) Metrics {
	trades := DeriveTrades(events)
	equity := DeriveEquity(events, candles, initialCapital)

	m := Metrics{InitialCapital: initialCapital, FinalCapital: initialCapital, Trades: len(trades)}
	grossProfit, grossLoss := 0.0, 0.0
	for _, tr := range trades {
		if tr.PnL >= 0 {
			m.Wins++
			grossProfit += tr.PnL
		} else {
			m.Losses++
			grossLoss -= tr.PnL
		}
	}
	if len(trades) > 0 {
		m.WinRate = float64(m.Wins) / float64(len(trades))
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		m.ProfitFactor = math.Inf(1)
	}
	if len(equity) > 0 {
		m.FinalCapital = equity[len(equity)-1].Equity
		for _, pt := range equity {
			if pt.Drawdown > m.MaxDrawdown {
				m.MaxDrawdown = pt.Drawdown
			}
		}
	}
	if initialCapital > 0 {
		m.TotalReturn = (m.FinalCapital - initialCapital) / initialCapital
	}
	m.Sharpe, m.Sortino = ratios(equity)
	return m
}

// ratios 以逐 K 线资金收益率计算 Sharpe / Sortino（无风险利率取 0）。
func ratios(equity []EquityPoint) (float64, float64) {
	if len(equity) < 2 {
		return 0, 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i].Equity-prev)/prev)
	}
	if len(returns) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance, downVar := 0.0, 0.0
	downN := 0
	for _, r := range returns {
		d := r - mean
		variance += d * d
		if r < 0 {
			downVar += r * r
			downN++
		}
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	sharpe := 0.0
	if std > 0 {
		sharpe = mean / std * math.Sqrt(float64(len(returns)))
	}
	sortino := 0.0
	if downN > 0 {
		downStd := math.Sqrt(downVar / float64(downN))
		if downStd > 0 {
			sortino = mean / downStd * math.Sqrt(float64(len(returns)))
		}
	}
	return sharpe, sortino
}
