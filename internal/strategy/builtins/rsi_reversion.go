package builtins

import (
	"strconv"

	"stratlab/internal/domain"
	"stratlab/internal/indicator"
	"stratlab/internal/strategy"
)

var _ strategy.Strategy = (*RSIReversion)(nil)

// rsiMidline is where mean-reversion positions are closed.
const rsiMidline = 50

// RSIReversion buys when RSI climbs back above the oversold level and sells
// short when it falls back below the overbought level. Positions close when
// RSI reaches the midline.
type RSIReversion struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIReversion creates an RSIReversion strategy.
func NewRSIReversion(period int, oversold, overbought float64) *RSIReversion {
	return &RSIReversion{period: period, oversold: oversold, overbought: overbought}
}

func (s *RSIReversion) Name() string { return "rsi_reversion" }

func (s *RSIReversion) ID() string {
	return "rsi_reversion(overbought=" + fmtFloat(s.overbought) +
		",oversold=" + fmtFloat(s.oversold) +
		",period=" + strconv.Itoa(s.period) + ")"
}

func (s *RSIReversion) Lookback() int { return s.period + 2 }

func (s *RSIReversion) readings(bars []domain.Bar) (prev, cur float64, ok bool) {
	if !strategy.Ready(s, bars) {
		return 0, 0, false
	}
	cur, ok1 := indicator.RSI(bars, s.period)
	prev, ok2 := indicator.RSI(indicator.Previous(bars), s.period)
	return prev, cur, ok1 && ok2
}

func (s *RSIReversion) Entry(bars []domain.Bar) domain.Signal {
	prev, cur, ok := s.readings(bars)
	if !ok {
		return domain.None()
	}
	return domain.Signal{
		Long:  strategy.CrossesAbove(prev, s.oversold, cur, s.oversold),
		Short: strategy.CrossesBelow(prev, s.overbought, cur, s.overbought),
	}
}

func (s *RSIReversion) Exit(bars []domain.Bar) domain.Signal {
	_, cur, ok := s.readings(bars)
	if !ok {
		return domain.None()
	}
	return domain.Signal{Long: cur >= rsiMidline, Short: cur <= rsiMidline}
}
