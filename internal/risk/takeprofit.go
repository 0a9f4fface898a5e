package risk

import (
	"math"

	"stratlab/internal/domain"
)

// TakeProfitFinder places the profit target for a new position given its
// entry and stop.
type TakeProfitFinder interface {
	ID() string
	TakeProfit(side domain.Side, entry, stop float64) float64
}

// Compile-time interface checks.
var (
	_ TakeProfitFinder = (*RiskRewardTarget)(nil)
	_ TakeProfitFinder = (*FixedPercentTarget)(nil)
	_ TakeProfitFinder = NoTarget{}
)

// unreachable is a target the bar extremes can never touch.
func unreachable(side domain.Side) float64 {
	if side == domain.SideLong {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// RiskRewardTarget sets the target Ratio stop distances beyond entry.
type RiskRewardTarget struct {
	Ratio float64
}

// NewRiskRewardTarget creates a RiskRewardTarget.
func NewRiskRewardTarget(ratio float64) *RiskRewardTarget {
	return &RiskRewardTarget{Ratio: ratio}
}

func (r *RiskRewardTarget) ID() string { return "tp_rr(ratio=" + fmtFloat(r.Ratio) + ")" }

// TakeProfit returns an unreachable target when the stop distance is zero.
func (r *RiskRewardTarget) TakeProfit(side domain.Side, entry, stop float64) float64 {
	dist := math.Abs(entry - stop)
	if dist == 0 || math.IsNaN(dist) || math.IsInf(dist, 0) {
		return unreachable(side)
	}
	if side == domain.SideLong {
		return entry + r.Ratio*dist
	}
	return entry - r.Ratio*dist
}

// FixedPercentTarget sets the target a fixed fraction beyond entry.
type FixedPercentTarget struct {
	Pct float64
}

// NewFixedPercentTarget creates a FixedPercentTarget (0.04 = 4%).
func NewFixedPercentTarget(pct float64) *FixedPercentTarget {
	return &FixedPercentTarget{Pct: pct}
}

func (f *FixedPercentTarget) ID() string { return "tp_fixed(pct=" + fmtFloat(f.Pct) + ")" }

func (f *FixedPercentTarget) TakeProfit(side domain.Side, entry, _ float64) float64 {
	if side == domain.SideLong {
		return entry * (1 + f.Pct)
	}
	return entry * (1 - f.Pct)
}

// NoTarget never takes profit; positions close on stop, signal or data end.
type NoTarget struct{}

func (NoTarget) ID() string { return "tp_none" }

func (NoTarget) TakeProfit(side domain.Side, _, _ float64) float64 { return unreachable(side) }
