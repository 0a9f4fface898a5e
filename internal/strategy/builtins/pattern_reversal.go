package builtins

import (
	"strconv"

	"stratlab/internal/domain"
	"stratlab/internal/indicator"
	"stratlab/internal/pattern"
	"stratlab/internal/strategy"
)

var _ strategy.Strategy = (*PatternReversal)(nil)

// PatternReversal takes any bullish candlestick pattern while RSI is
// oversold and any bearish pattern while RSI is overbought. A pattern of the
// opposite bias closes the position.
type PatternReversal struct {
	rsiPeriod  int
	oversold   float64
	overbought float64
}

// NewPatternReversal creates a PatternReversal strategy.
func NewPatternReversal(rsiPeriod int, oversold, overbought float64) *PatternReversal {
	return &PatternReversal{rsiPeriod: rsiPeriod, oversold: oversold, overbought: overbought}
}

func (s *PatternReversal) Name() string { return "pattern_reversal" }

func (s *PatternReversal) ID() string {
	return "pattern_reversal(overbought=" + fmtFloat(s.overbought) +
		",oversold=" + fmtFloat(s.oversold) +
		",rsi=" + strconv.Itoa(s.rsiPeriod) + ")"
}

// Lookback covers the RSI and the deepest three-bar pattern.
func (s *PatternReversal) Lookback() int { return max(s.rsiPeriod+1, 3) }

func (s *PatternReversal) Entry(bars []domain.Bar) domain.Signal {
	if !strategy.Ready(s, bars) {
		return domain.None()
	}
	rsi, ok := indicator.RSI(bars, s.rsiPeriod)
	if !ok {
		return domain.None()
	}
	return domain.Signal{
		Long:  rsi <= s.oversold && pattern.HasBias(bars, pattern.Bullish),
		Short: rsi >= s.overbought && pattern.HasBias(bars, pattern.Bearish),
	}
}

func (s *PatternReversal) Exit(bars []domain.Bar) domain.Signal {
	if !strategy.Ready(s, bars) {
		return domain.None()
	}
	return domain.Signal{
		Long:  pattern.HasBias(bars, pattern.Bearish),
		Short: pattern.HasBias(bars, pattern.Bullish),
	}
}
