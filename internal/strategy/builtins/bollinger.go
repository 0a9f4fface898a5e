package builtins

import (
	"strconv"

	"stratlab/internal/domain"
	"stratlab/internal/indicator"
	"stratlab/internal/strategy"
)

var _ strategy.Strategy = (*BollingerBounce)(nil)

// BollingerBounce fades moves outside the bands: a close back inside the
// lower band after closing below it opens a long, the mirror opens a short.
// Positions close at the middle band.
type BollingerBounce struct {
	period int
	k      float64
}

// NewBollingerBounce creates a BollingerBounce strategy.
func NewBollingerBounce(period int, k float64) *BollingerBounce {
	return &BollingerBounce{period: period, k: k}
}

func (s *BollingerBounce) Name() string { return "bollinger_bounce" }

func (s *BollingerBounce) ID() string {
	return "bollinger_bounce(k=" + fmtFloat(s.k) + ",period=" + strconv.Itoa(s.period) + ")"
}

func (s *BollingerBounce) Lookback() int { return s.period + 1 }

func (s *BollingerBounce) Entry(bars []domain.Bar) domain.Signal {
	if !strategy.Ready(s, bars) {
		return domain.None()
	}
	prevBars := indicator.Previous(bars)
	cur, ok1 := indicator.BollingerBands(bars, s.period, s.k)
	prev, ok2 := indicator.BollingerBands(prevBars, s.period, s.k)
	if !ok1 || !ok2 {
		return domain.None()
	}
	c := bars[len(bars)-1].Close
	pc := prevBars[len(prevBars)-1].Close
	return domain.Signal{
		Long:  pc < prev.Lower && c > cur.Lower,
		Short: pc > prev.Upper && c < cur.Upper,
	}
}

func (s *BollingerBounce) Exit(bars []domain.Bar) domain.Signal {
	if !strategy.Ready(s, bars) {
		return domain.None()
	}
	b, ok := indicator.BollingerBands(bars, s.period, s.k)
	if !ok {
		return domain.None()
	}
	c := bars[len(bars)-1].Close
	return domain.Signal{Long: c >= b.Middle, Short: c <= b.Middle}
}
