package sim

import "backlab/internal/market"

// FeaturePlugin 是纯函数：读 Fence，产出当前索引的新特征值。
// Outputs 与 Requires 在流水线构建期校验（列冲突 / 依赖缺失）。
type FeaturePlugin interface {
	Name() string
	Outputs() []string
	Requires() []string
	Compute(view *Fence) (map[string]float64, error)
}

// SignalPlugin 读取特征帧，在当前索引产出零个或多个信号。
// 不允许有副作用，也不接触仓位状态。
type SignalPlugin interface {
	Name() string
	Requires() []string
	Generate(view *Fence) ([]Signal, error)
}

// ExecutionPolicy 按优先级顺序消费 (状态, K 线, 信号批)。
// 状态变更只能通过 Txn 的转移原语发生，从而可归因到策略与时间戳；
// ENTER/EXIT 的成交意图经 Txn 提交，由回放循环在本步末尾交给 Fill Model。
type ExecutionPolicy interface {
	Name() string
	Execute(tx *Txn, candle market.Candle, signals []Signal) error
}

// FillModel 把成交意图映射为确定性的成交价/数量。
// 任何随机性（滑点抽样）必须来自 RunSpec.Seed 派生的 RNG。
type FillModel interface {
	Name() string
	Fill(intent OrderIntent, candle market.Candle) (price, quantity float64, err error)
}
