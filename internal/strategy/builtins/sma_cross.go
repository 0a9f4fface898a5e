// Package builtins provides the strategy implementations that ship with
// stratlab.
package builtins

import (
	"strconv"

	"stratlab/internal/domain"
	"stratlab/internal/indicator"
	"stratlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It goes
// long when the fast SMA crosses above the slow SMA and short when it
// crosses below; the opposite cross closes the position.
type SMACross struct {
	fast int
	slow int
}

// NewSMACross creates a new SMACross strategy with the specified fast and
// slow moving average periods.
func NewSMACross(fast, slow int) *SMACross {
	return &SMACross{fast: fast, slow: slow}
}

// Name returns "sma_cross".
func (s *SMACross) Name() string { return "sma_cross" }

// ID returns the family name with both periods.
func (s *SMACross) ID() string {
	return "sma_cross(fast=" + strconv.Itoa(s.fast) + ",slow=" + strconv.Itoa(s.slow) + ")"
}

// Lookback is one bar beyond the slow period so the previous reading exists.
func (s *SMACross) Lookback() int { return s.slow + 1 }

// cross returns (crossed above, crossed below) at the last bar.
func (s *SMACross) cross(bars []domain.Bar) (bool, bool) {
	if !strategy.Ready(s, bars) {
		return false, false
	}
	prev := indicator.Previous(bars)
	fast, ok1 := indicator.SMA(bars, s.fast)
	slow, ok2 := indicator.SMA(bars, s.slow)
	prevFast, ok3 := indicator.SMA(prev, s.fast)
	prevSlow, ok4 := indicator.SMA(prev, s.slow)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false, false
	}
	return strategy.CrossesAbove(prevFast, prevSlow, fast, slow),
		strategy.CrossesBelow(prevFast, prevSlow, fast, slow)
}

// Entry signals long on a golden cross and short on a death cross.
func (s *SMACross) Entry(bars []domain.Bar) domain.Signal {
	up, down := s.cross(bars)
	return domain.Signal{Long: up, Short: down}
}

// Exit closes longs on a death cross and shorts on a golden cross.
func (s *SMACross) Exit(bars []domain.Bar) domain.Signal {
	up, down := s.cross(bars)
	return domain.Signal{Long: down, Short: up}
}
