package fill

import (
	"fmt"
	"math/rand"

	"backlab/internal/market"
	"backlab/internal/runspec"
	"backlab/internal/sim"
)

// Register 把内置成交模型挂到注册表。
func Register(reg *sim.Registry) {
	if reg == nil {
		return
	}
	reg.RegisterFill("close", func(params map[string]any, seed int64) (sim.FillModel, error) {
		return &ClosePriceFill{}, nil
	})
	reg.RegisterFill("slippage", newSlippageFill)
}

// ClosePriceFill 是 v1 默认模型：按收盘价立即全量成交、零滑点。
// 退化情形同样要满足确定性契约。
type ClosePriceFill struct{}

func (f *ClosePriceFill) Name() string { return "close" }

func (f *ClosePriceFill) Fill(intent sim.OrderIntent, candle market.Candle) (float64, float64, error) {
	if candle.Close <= 0 {
		return 0, 0, fmt.Errorf("收盘价非法: %v", candle.Close)
	}
	return candle.Close, intent.Quantity, nil
}

// SlippageFill 在收盘价上追加不利方向的固定 bps 滑点，
// 可选抖动从 RunSpec.Seed 派生的 RNG 抽样——每个 run 重新播种，
// 绝不使用未播种或墙钟来源。
type SlippageFill struct {
	bps    float64
	jitter float64
	rng    *rand.Rand
}

func newSlippageFill(params map[string]any, seed int64) (sim.FillModel, error) {
	bps, ok := runspec.ParamNumber(params, "slippage_bps")
	if !ok || bps < 0 {
		bps = 2
	}
	jitter, _ := runspec.ParamNumber(params, "jitter_bps")
	if jitter < 0 {
		jitter = 0
	}
	return &SlippageFill{
		bps:    bps,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

func (f *SlippageFill) Name() string { return "slippage" }

func (f *SlippageFill) Fill(intent sim.OrderIntent, candle market.Candle) (float64, float64, error) {
	base := candle.Close
	if base <= 0 {
		return 0, 0, fmt.Errorf("收盘价非法: %v", base)
	}
	bps := f.bps
	if f.jitter > 0 {
		bps += f.rng.Float64() * f.jitter
	}
	slip := base * bps / 10000
	price := base
	adverse := intent.Side == sim.SideLong
	if intent.Kind == sim.IntentExit {
		adverse = !adverse
	}
	if adverse {
		price += slip
	} else {
		price -= slip
	}
	return price, intent.Quantity, nil
}
