package policies

import (
	"math"

	"github.com/shopspring/decimal"

	"backlab/internal/sim"
)

var (
	decOne     = decimal.NewFromInt(1)
	decimalEps = decimal.NewFromFloat(1e-8)
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func decimalLTE(a, b float64) bool { return decimalCompare(a, b) <= 0 }
func decimalGTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }
func decimalLT(a, b float64) bool  { return decimalCompare(a, b) < 0 }
func decimalGT(a, b float64) bool  { return decimalCompare(a, b) > 0 }

// relativeTarget 以入场价为基准算出方向正确的目标价。
func relativeTarget(entry, pct float64, side sim.PositionSide) float64 {
	if entry <= 0 {
		return 0
	}
	base := decFromFloat(entry)
	pctDec := decFromFloat(pct)
	var factor decimal.Decimal
	switch side {
	case sim.SideShort:
		factor = decOne.Sub(pctDec)
	default:
		factor = decOne.Add(pctDec)
	}
	return decToFloat(base.Mul(factor))
}

func tierTargetHit(side sim.PositionSide, price, target float64) bool {
	if price <= 0 || target <= 0 {
		return false
	}
	switch side {
	case sim.SideShort:
		return decimalLTE(price, target)
	default:
		return decimalGTE(price, target)
	}
}

func shouldUpdateAnchor(side sim.PositionSide, price, anchor float64) bool {
	if price <= 0 || anchor <= 0 {
		return false
	}
	switch side {
	case sim.SideShort:
		return decimalLT(price, anchor)
	default:
		return decimalGT(price, anchor)
	}
}

// trailingStopFor 由锚点价与回撤比例算出止损价。
func trailingStopFor(side sim.PositionSide, anchor, pct float64) float64 {
	if anchor <= 0 || pct <= 0 {
		return 0
	}
	base := decFromFloat(anchor)
	pctDec := decFromFloat(pct)
	var factor decimal.Decimal
	switch side {
	case sim.SideShort:
		factor = decOne.Add(pctDec)
	default:
		factor = decOne.Sub(pctDec)
	}
	return decToFloat(base.Mul(factor))
}

// shouldUpdateStop 带 epsilon，避免浮点噪声造成的来回微调。
func shouldUpdateStop(side sim.PositionSide, candidate, current float64) bool {
	if candidate <= 0 {
		return false
	}
	if current <= 0 {
		return true
	}
	cand := decFromFloat(candidate)
	curr := decFromFloat(current)
	switch side {
	case sim.SideShort:
		return cand.Cmp(curr.Sub(decimalEps)) < 0
	default:
		return cand.Cmp(curr.Add(decimalEps)) > 0
	}
}

func priceBreachedStop(side sim.PositionSide, price, stop float64) bool {
	if stop <= 0 || price <= 0 {
		return false
	}
	switch side {
	case sim.SideShort:
		return decimalGTE(price, stop)
	default:
		return decimalLTE(price, stop)
	}
}
