// Package report writes screening and backtest results as CSV files and
// console tables.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatMoney formats a signed amount with two decimals and K/M suffixes
// for large magnitudes.
func FormatMoney(v float64) string {
	a := math.Abs(v)
	switch {
	case a >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case a >= 1e4:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// FormatPct formats a fraction as a signed percentage, "+X.X%" or "-X.X%".
// Drops the decimal for magnitudes ≥ 100% to keep width compact.
func FormatPct(f float64) string {
	if math.IsNaN(f) {
		return "-"
	}
	pct := f * 100
	if pct == 0 {
		return "0.0%"
	}
	if math.Abs(pct) >= 100 {
		return fmt.Sprintf("%+.0f%%", pct)
	}
	return fmt.Sprintf("%+.1f%%", pct)
}

// FormatRatio formats a ratio with two decimals, "-" for NaN and "INF" for
// an infinite ratio.
func FormatRatio(r float64) string {
	switch {
	case math.IsNaN(r):
		return "-"
	case math.IsInf(r, 1):
		return "INF"
	case math.IsInf(r, -1):
		return "-INF"
	default:
		return fmt.Sprintf("%.2f", r)
	}
}

// FormatPrice formats a price, or "-" for an unset or unreachable level.
func FormatPrice(p float64) string {
	if p == 0 || math.IsInf(p, 0) || math.IsNaN(p) {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

func csvFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
