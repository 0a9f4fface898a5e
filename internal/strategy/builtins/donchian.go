package builtins

import (
	"strconv"

	"stratlab/internal/domain"
	"stratlab/internal/indicator"
	"stratlab/internal/strategy"
)

var _ strategy.Strategy = (*DonchianBreakout)(nil)

// DonchianBreakout enters when the close breaks the channel formed by the
// previous period bars and exits when it breaks the opposite side of a
// channel half as long.
type DonchianBreakout struct {
	period int
}

// NewDonchianBreakout creates a DonchianBreakout strategy.
func NewDonchianBreakout(period int) *DonchianBreakout {
	return &DonchianBreakout{period: period}
}

func (s *DonchianBreakout) Name() string { return "donchian_breakout" }

func (s *DonchianBreakout) ID() string {
	return "donchian_breakout(period=" + strconv.Itoa(s.period) + ")"
}

func (s *DonchianBreakout) Lookback() int { return s.period + 1 }

func (s *DonchianBreakout) exitPeriod() int { return max(s.period/2, 1) }

// channel returns the high/low of the n bars before the last one.
func channel(bars []domain.Bar, n int) (high, low float64, ok bool) {
	prev := indicator.Previous(bars)
	high, ok1 := indicator.Highest(prev, n)
	low, ok2 := indicator.Lowest(prev, n)
	return high, low, ok1 && ok2
}

func (s *DonchianBreakout) Entry(bars []domain.Bar) domain.Signal {
	if !strategy.Ready(s, bars) {
		return domain.None()
	}
	high, low, ok := channel(bars, s.period)
	if !ok {
		return domain.None()
	}
	c := bars[len(bars)-1].Close
	return domain.Signal{Long: c > high, Short: c < low}
}

func (s *DonchianBreakout) Exit(bars []domain.Bar) domain.Signal {
	if !strategy.Ready(s, bars) {
		return domain.None()
	}
	high, low, ok := channel(bars, s.exitPeriod())
	if !ok {
		return domain.None()
	}
	c := bars[len(bars)-1].Close
	return domain.Signal{Long: c < low, Short: c > high}
}
