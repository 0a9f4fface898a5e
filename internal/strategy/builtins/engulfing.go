package builtins

import (
	"strconv"

	"stratlab/internal/domain"
	"stratlab/internal/indicator"
	"stratlab/internal/pattern"
	"stratlab/internal/strategy"
)

var _ strategy.Strategy = (*EngulfingTrend)(nil)

// EngulfingTrend trades engulfing candles in the direction of an EMA trend
// filter. The opposite engulfing candle closes the position.
type EngulfingTrend struct {
	trendPeriod int
}

// NewEngulfingTrend creates an EngulfingTrend strategy.
func NewEngulfingTrend(trendPeriod int) *EngulfingTrend {
	return &EngulfingTrend{trendPeriod: trendPeriod}
}

func (s *EngulfingTrend) Name() string { return "engulfing_trend" }

func (s *EngulfingTrend) ID() string {
	return "engulfing_trend(trend=" + strconv.Itoa(s.trendPeriod) + ")"
}

func (s *EngulfingTrend) Lookback() int { return max(s.trendPeriod, 2) }

func (s *EngulfingTrend) Entry(bars []domain.Bar) domain.Signal {
	if !strategy.Ready(s, bars) {
		return domain.None()
	}
	ema, ok := indicator.EMA(bars, s.trendPeriod)
	if !ok {
		return domain.None()
	}
	prev, cur := bars[len(bars)-2], bars[len(bars)-1]
	return domain.Signal{
		Long:  pattern.IsBullishEngulfing(prev, cur) && cur.Close > ema,
		Short: pattern.IsBearishEngulfing(prev, cur) && cur.Close < ema,
	}
}

func (s *EngulfingTrend) Exit(bars []domain.Bar) domain.Signal {
	if len(bars) < 2 {
		return domain.None()
	}
	prev, cur := bars[len(bars)-2], bars[len(bars)-1]
	return domain.Signal{
		Long:  pattern.IsBearishEngulfing(prev, cur),
		Short: pattern.IsBullishEngulfing(prev, cur),
	}
}
