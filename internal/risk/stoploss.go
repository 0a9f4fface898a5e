// Package risk computes stop-loss and take-profit levels, sizes positions
// against account risk, and decides when a bar breaches a position's
// protective levels.
package risk

import (
	"log/slog"
	"math"
	"strconv"

	"stratlab/internal/domain"
	"stratlab/internal/indicator"
)

// StopLossFinder places the initial protective stop for a new position.
// bars is the prefix ending at the entry bar.
type StopLossFinder interface {
	// ID is the canonical identity, including every parameter.
	ID() string
	// Lookback is the number of bars the finder needs for a full reading.
	Lookback() int
	StopLoss(side domain.Side, entry float64, bars []domain.Bar) float64
}

// Trailer is implemented by stop finders that move the stop while a
// position is open. Trail must never loosen the stop.
type Trailer interface {
	Trail(side domain.Side, stop float64, bar domain.Bar) float64
}

// Compile-time interface checks.
var (
	_ StopLossFinder = (*FixedPercentStop)(nil)
	_ StopLossFinder = (*ATRStop)(nil)
	_ StopLossFinder = (*SwingStop)(nil)
	_ StopLossFinder = (*TrailingStop)(nil)
	_ Trailer        = (*TrailingStop)(nil)
)

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func offset(side domain.Side, price, frac float64) float64 {
	if side == domain.SideLong {
		return price * (1 - frac)
	}
	return price * (1 + frac)
}

// ---------------------------------------------------------------------------
// Fixed percentage
// ---------------------------------------------------------------------------

// FixedPercentStop places the stop a fixed fraction away from entry.
type FixedPercentStop struct {
	Pct float64
}

// NewFixedPercentStop creates a FixedPercentStop (0.02 = 2%).
func NewFixedPercentStop(pct float64) *FixedPercentStop {
	return &FixedPercentStop{Pct: pct}
}

func (f *FixedPercentStop) ID() string { return "sl_fixed(pct=" + fmtFloat(f.Pct) + ")" }

func (f *FixedPercentStop) Lookback() int { return 0 }

func (f *FixedPercentStop) StopLoss(side domain.Side, entry float64, _ []domain.Bar) float64 {
	return offset(side, entry, f.Pct)
}

// ---------------------------------------------------------------------------
// ATR multiple
// ---------------------------------------------------------------------------

// atrFallbackPct is used when the prefix is too short for an ATR reading.
const atrFallbackPct = 0.02

// ATRStop places the stop Multiplier average true ranges from entry.
type ATRStop struct {
	Period     int
	Multiplier float64
	log        *slog.Logger
}

// NewATRStop creates an ATRStop.
func NewATRStop(period int, multiplier float64) *ATRStop {
	return &ATRStop{
		Period:     period,
		Multiplier: multiplier,
		log:        slog.Default().With("component", "stoploss"),
	}
}

func (a *ATRStop) ID() string {
	return "sl_atr(mult=" + fmtFloat(a.Multiplier) + ",period=" + strconv.Itoa(a.Period) + ")"
}

func (a *ATRStop) Lookback() int { return a.Period + 1 }

func (a *ATRStop) StopLoss(side domain.Side, entry float64, bars []domain.Bar) float64 {
	atr, ok := indicator.ATR(bars, a.Period)
	if !ok || atr <= 0 {
		a.log.Warn("atr unavailable, using fixed stop",
			"bars", len(bars), "period", a.Period, "fallbackPct", atrFallbackPct)
		return offset(side, entry, atrFallbackPct)
	}
	if side == domain.SideLong {
		return entry - a.Multiplier*atr
	}
	return entry + a.Multiplier*atr
}

// ---------------------------------------------------------------------------
// Swing low / high
// ---------------------------------------------------------------------------

// minSwingFallback bounds the fallback distance when Buffer is zero.
const minSwingFallback = 0.01

// SwingStop places the stop beyond the most recent swing extreme: the lowest
// low (long) or highest high (short) of the last Bars bars, pushed out by
// Buffer. A swing on the wrong side of entry falls back to a fixed stop.
type SwingStop struct {
	Bars   int
	Buffer float64
}

// NewSwingStop creates a SwingStop.
func NewSwingStop(bars int, buffer float64) *SwingStop {
	return &SwingStop{Bars: bars, Buffer: buffer}
}

func (s *SwingStop) ID() string {
	return "sl_swing(bars=" + strconv.Itoa(s.Bars) + ",buffer=" + fmtFloat(s.Buffer) + ")"
}

func (s *SwingStop) Lookback() int { return s.Bars }

func (s *SwingStop) StopLoss(side domain.Side, entry float64, bars []domain.Bar) float64 {
	n := min(s.Bars, len(bars))
	fallback := offset(side, entry, math.Max(s.Buffer, minSwingFallback))
	if n <= 0 {
		return fallback
	}

	if side == domain.SideLong {
		low, ok := indicator.Lowest(bars, n)
		stop := low * (1 - s.Buffer)
		if !ok || stop >= entry {
			return fallback
		}
		return stop
	}

	high, ok := indicator.Highest(bars, n)
	stop := high * (1 + s.Buffer)
	if !ok || stop <= entry {
		return fallback
	}
	return stop
}

// ---------------------------------------------------------------------------
// Trailing
// ---------------------------------------------------------------------------

// DefaultMaxIterations caps trailing adjustments per bar.
const DefaultMaxIterations = 100

// TrailingStop takes its initial stop from Base and then follows the
// favorable extreme of each bar at a TrailPct distance. The stop moves in
// increments of Step × close, at most MaxIterations increments per bar.
// A non-positive Step moves straight to the trailing level.
type TrailingStop struct {
	Base          StopLossFinder
	TrailPct      float64
	Step          float64
	MaxIterations int
}

// NewTrailingStop creates a TrailingStop. maxIterations ≤ 0 selects
// DefaultMaxIterations.
func NewTrailingStop(base StopLossFinder, trailPct, step float64, maxIterations int) *TrailingStop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &TrailingStop{Base: base, TrailPct: trailPct, Step: step, MaxIterations: maxIterations}
}

func (t *TrailingStop) ID() string {
	return "sl_trail(base=" + t.Base.ID() +
		",pct=" + fmtFloat(t.TrailPct) +
		",step=" + fmtFloat(t.Step) +
		",max=" + strconv.Itoa(t.MaxIterations) + ")"
}

func (t *TrailingStop) Lookback() int { return t.Base.Lookback() }

func (t *TrailingStop) StopLoss(side domain.Side, entry float64, bars []domain.Bar) float64 {
	return t.Base.StopLoss(side, entry, bars)
}

// Trail returns the tightened stop after observing bar.
func (t *TrailingStop) Trail(side domain.Side, stop float64, bar domain.Bar) float64 {
	long := side == domain.SideLong
	var level float64
	if long {
		level = bar.High * (1 - t.TrailPct)
		if level <= stop {
			return stop
		}
	} else {
		level = bar.Low * (1 + t.TrailPct)
		if level >= stop {
			return stop
		}
	}

	inc := t.Step * bar.Close
	if inc <= 0 {
		return level
	}

	for i := 0; i < t.MaxIterations; i++ {
		if long {
			if stop+inc > level {
				break
			}
			stop += inc
		} else {
			if stop-inc < level {
				break
			}
			stop -= inc
		}
	}
	return stop
}
