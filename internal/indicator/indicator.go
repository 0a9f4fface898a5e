// Package indicator wraps go-talib for use over a bar prefix. Every function
// evaluates the indicator at the last bar of the prefix and reports ok=false
// when the prefix is too short, so callers treat short history as "no
// signal" rather than an error.
package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"stratlab/internal/domain"
)

// Recursive indicators (EMA, RSI, ATR) are fed settle(period) trailing bars.
// Their seed error decays geometrically, so past this depth the reading
// matches the full-prefix value to well below display precision.
const (
	settleFactor = 10
	settleFloor  = 250
)

func settle(period int) int {
	return max(period*settleFactor, settleFloor)
}

// Window returns the trailing slice of bars needed to evaluate an indicator
// of the given depth. It never copies.
func Window(bars []domain.Bar, n int) []domain.Bar {
	if n <= 0 || n >= len(bars) {
		return bars
	}
	return bars[len(bars)-n:]
}

// Closes extracts close prices.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Opens extracts open prices.
func Opens(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Open
	}
	return out
}

// Highs extracts high prices.
func Highs(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts low prices.
func Lows(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts volumes.
func Volumes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

func last(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// SMA is the simple moving average of closes.
func SMA(bars []domain.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period {
		return 0, false
	}
	return last(talib.Sma(Closes(Window(bars, period)), period))
}

// EMA is the exponential moving average of closes.
func EMA(bars []domain.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period {
		return 0, false
	}
	return last(talib.Ema(Closes(Window(bars, settle(period))), period))
}

// RSI is Wilder's relative strength index of closes.
func RSI(bars []domain.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}
	return last(talib.Rsi(Closes(Window(bars, settle(period+1))), period))
}

// ATR is the average true range.
func ATR(bars []domain.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}
	w := Window(bars, settle(period+1))
	return last(talib.Atr(Highs(w), Lows(w), Closes(w), period))
}

// Bands is one Bollinger reading.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// BollingerBands computes SMA-based bands k standard deviations wide.
func BollingerBands(bars []domain.Bar, period int, k float64) (Bands, bool) {
	if period <= 1 || len(bars) < period {
		return Bands{}, false
	}
	upper, middle, lower := talib.BBands(Closes(Window(bars, period)), period, k, k, talib.SMA)
	u, okU := last(upper)
	m, okM := last(middle)
	l, okL := last(lower)
	if !okU || !okM || !okL {
		return Bands{}, false
	}
	return Bands{Upper: u, Middle: m, Lower: l}, true
}

// StdDev is the population standard deviation of closes.
func StdDev(bars []domain.Bar, period int) (float64, bool) {
	if period <= 1 || len(bars) < period {
		return 0, false
	}
	return last(talib.StdDev(Closes(Window(bars, period)), period, 1.0))
}

// Highest is the highest high of the last n bars.
func Highest(bars []domain.Bar, n int) (float64, bool) {
	if n <= 0 || len(bars) < n {
		return 0, false
	}
	return last(talib.Max(Highs(Window(bars, n)), n))
}

// Lowest is the lowest low of the last n bars.
func Lowest(bars []domain.Bar, n int) (float64, bool) {
	if n <= 0 || len(bars) < n {
		return 0, false
	}
	return last(talib.Min(Lows(Window(bars, n)), n))
}

// Previous returns the prefix without its last bar, for "value one bar
// ago" comparisons.
func Previous(bars []domain.Bar) []domain.Bar {
	if len(bars) == 0 {
		return bars
	}
	return bars[:len(bars)-1]
}
