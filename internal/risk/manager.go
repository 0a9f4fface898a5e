package risk

import (
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"stratlab/internal/domain"
)

// Params are the sizing inputs shared by every position of a run.
type Params struct {
	// RiskFraction is the share of account size put at risk per trade.
	RiskFraction float64
	// DefaultSize is used when the stop distance is degenerate.
	DefaultSize float64
	Instrument  domain.Instrument
}

// Manager combines one stop-loss finder and one take-profit finder with the
// sizing rules of a run. A Manager holds no per-position state and is safe
// for concurrent use.
type Manager struct {
	stopLoss   StopLossFinder
	takeProfit TakeProfitFinder
	params     Params
	log        *slog.Logger
}

// NewManager creates a Manager. A nil logger selects slog.Default().
func NewManager(sl StopLossFinder, tp TakeProfitFinder, p Params, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if tp == nil {
		tp = NoTarget{}
	}
	return &Manager{
		stopLoss:   sl,
		takeProfit: tp,
		params:     p,
		log:        log.With("component", "risk", "symbol", p.Instrument.Symbol),
	}
}

// StopLossFinder returns the configured stop finder.
func (m *Manager) StopLossFinder() StopLossFinder { return m.stopLoss }

// TakeProfitFinder returns the configured target finder.
func (m *Manager) TakeProfitFinder() TakeProfitFinder { return m.takeProfit }

// Lookback is the history the stop finder needs.
func (m *Manager) Lookback() int { return m.stopLoss.Lookback() }

// Prices returns the stop-loss and take-profit for a position opened at
// entry. bars is the prefix ending at the entry bar.
func (m *Manager) Prices(side domain.Side, entry float64, bars []domain.Bar) (stop, target float64) {
	stop = m.roundPrice(m.stopLoss.StopLoss(side, entry, bars))
	target = m.roundPrice(m.takeProfit.TakeProfit(side, entry, stop))
	return stop, target
}

// PositionSize risks RiskFraction of account between entry and stop, net of
// fees: size = risk / (|entry − stop| × (1 + fee)). The result is floored at
// the instrument minimum and rounded to its size precision. A degenerate
// stop distance falls back to DefaultSize.
func (m *Manager) PositionSize(account, entry, stop float64) float64 {
	inst := m.params.Instrument
	dist := math.Abs(entry - stop)
	if dist == 0 || math.IsNaN(dist) || math.IsInf(dist, 0) {
		m.log.Warn("degenerate stop distance, using default size",
			"entry", entry, "stop", stop, "size", m.params.DefaultSize)
		return m.roundSize(m.params.DefaultSize)
	}
	if account <= 0 {
		m.log.Warn("non-positive account size, skipping position", "account", account)
		return 0
	}

	riskAmount := m.params.RiskFraction * account
	size := riskAmount / (dist * (1 + inst.TradingFee))
	size = m.roundSize(size)
	if size < inst.MinSize {
		size = inst.MinSize
	}
	return size
}

// ShouldExit reports whether bar breaches the stop or the target.
func (m *Manager) ShouldExit(side domain.Side, stop, target float64, bar domain.Bar) bool {
	_, _, ok := ExitReason(side, stop, target, bar)
	return ok
}

// Trail tightens stop when the stop finder trails; otherwise stop is
// returned unchanged.
func (m *Manager) Trail(side domain.Side, stop float64, bar domain.Bar) float64 {
	if t, ok := m.stopLoss.(Trailer); ok {
		return t.Trail(side, stop, bar)
	}
	return stop
}

// ExitReason reports which level bar breaches and the raw price at which
// the breach was observed (the bar extreme). The stop is checked first, so a
// bar touching both levels exits at the stop.
func ExitReason(side domain.Side, stop, target float64, bar domain.Bar) (domain.ExitReason, float64, bool) {
	if side == domain.SideLong {
		if bar.Low <= stop {
			return domain.ExitStopLoss, bar.Low, true
		}
		if bar.High >= target {
			return domain.ExitTakeProfit, bar.High, true
		}
		return "", 0, false
	}

	if bar.High >= stop {
		return domain.ExitStopLoss, bar.High, true
	}
	if bar.Low <= target {
		return domain.ExitTakeProfit, bar.Low, true
	}
	return "", 0, false
}

// ClampExit bounds price between the position's stop and target.
func ClampExit(stop, target, price float64) float64 {
	lo, hi := math.Min(stop, target), math.Max(stop, target)
	return math.Min(math.Max(price, lo), hi)
}

func (m *Manager) roundPrice(p float64) float64 {
	if math.IsInf(p, 0) || math.IsNaN(p) {
		return p
	}
	return decimal.NewFromFloat(p).Round(m.params.Instrument.PricePrecision).InexactFloat64()
}

func (m *Manager) roundSize(s float64) float64 {
	if math.IsInf(s, 0) || math.IsNaN(s) {
		return s
	}
	return decimal.NewFromFloat(s).Round(m.params.Instrument.SizePrecision).InexactFloat64()
}
