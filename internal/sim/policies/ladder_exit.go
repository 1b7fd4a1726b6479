package policies

import (
	"fmt"
	"sort"

	"backlab/internal/market"
	"backlab/internal/runspec"
	"backlab/internal/sim"
)

// ladderLevel 是一档分批止盈：涨/跌幅达标时平掉对应比例。
type ladderLevel struct {
	gainPct float64
	ratio   float64
}

// LadderExit 分批止盈：各档位比例之和必须为 1，末档触发即清仓。
// 已触发的档位数从账本里本策略的 EXIT 成交推导，最近一次
// ENTER 成交把计数清零，仓位状态之外不保留任何进度。
type LadderExit struct {
	levels []ladderLevel
}

func newLadderExit(params map[string]any) (sim.ExecutionPolicy, error) {
	raw, ok := params["levels"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("ladder_exit 需要非空 levels 列表")
	}
	levels := make([]ladderLevel, 0, len(raw))
	ratioSum := 0.0
	for i, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("levels[%d] 不是对象", i)
		}
		gain, okGain := runspec.ParamNumber(entry, "gain_pct")
		ratio, okRatio := runspec.ParamNumber(entry, "ratio")
		if !okGain || gain <= 0 {
			return nil, fmt.Errorf("levels[%d].gain_pct 非法", i)
		}
		if !okRatio || ratio <= 0 || ratio > 1 {
			return nil, fmt.Errorf("levels[%d].ratio 非法", i)
		}
		levels = append(levels, ladderLevel{gainPct: gain, ratio: ratio})
		ratioSum += ratio
	}
	if decimalLT(ratioSum, 0.999) || decimalGT(ratioSum, 1.001) {
		return nil, fmt.Errorf("levels 比例之和需为 1，当前=%v", ratioSum)
	}
	sort.SliceStable(levels, func(a, b int) bool { return levels[a].gainPct < levels[b].gainPct })
	return &LadderExit{levels: levels}, nil
}

func (p *LadderExit) Name() string { return "ladder_exit" }

func (p *LadderExit) Execute(tx *sim.Txn, candle market.Candle, signals []sim.Signal) error {
	st := tx.State()
	if st.Status == sim.StatusFlat {
		return nil
	}
	fired := p.firedCount(tx.Fills())
	if fired >= len(p.levels) {
		return nil
	}
	remaining := 1.0
	for _, lv := range p.levels[:fired] {
		remaining -= lv.ratio
	}
	if remaining <= 0 {
		return nil
	}
	size := st.Size
	localRem := remaining
	for i := fired; i < len(p.levels); i++ {
		lv := p.levels[i]
		target := relativeTarget(st.EntryPrice, lv.gainPct, st.Side)
		if !tierTargetHit(st.Side, candle.Close, target) {
			continue
		}
		qty := size * lv.ratio / remaining
		if localRem-lv.ratio <= 0.001 {
			// 末档留 0 让成交阶段清到底，避免比例除法残渣。
			qty = 0
		}
		localRem -= lv.ratio
		tx.SubmitExit(qty, fmt.Sprintf("ladder level %d at +%.2f%%", i+1, lv.gainPct*100))
	}
	return nil
}

// firedCount 数出当前持仓内本策略已成交的档位数。
func (p *LadderExit) firedCount(fills []sim.Event) int {
	count := 0
	for _, evt := range fills {
		kind, _ := evt.Metadata["kind"].(string)
		switch kind {
		case string(sim.IntentEnter):
			count = 0
		case string(sim.IntentExit):
			if pol, _ := evt.Metadata["policy"].(string); pol == p.Name() {
				count++
			}
		}
	}
	return count
}
