// Package pattern provides pure candlestick pattern predicates over bars.
// Shape thresholds are relative to each bar's own range, so a bar with zero
// range never matches a shape-based pattern.
package pattern

import (
	"math"

	"stratlab/internal/domain"
)

const (
	dojiBodyRatio     = 0.1  // body ≤ 10% of range
	smallBodyRatio    = 0.3  // body ≤ 30% of range
	longBodyRatio     = 0.6  // body ≥ 60% of range
	marubozuBodyRatio = 0.95 // body ≥ 95% of range
	shadowMultiple    = 2.0  // dominant shadow ≥ 2× body
	tinyShadowRatio   = 0.1  // opposite shadow ≤ 10% of range
)

// ---------------------------------------------------------------------------
// Candle anatomy
// ---------------------------------------------------------------------------

// Body is the absolute open–close distance.
func Body(b domain.Bar) float64 { return math.Abs(b.Close - b.Open) }

// Range is high minus low.
func Range(b domain.Bar) float64 { return b.High - b.Low }

// UpperShadow is the wick above the body.
func UpperShadow(b domain.Bar) float64 { return b.High - math.Max(b.Open, b.Close) }

// LowerShadow is the wick below the body.
func LowerShadow(b domain.Bar) float64 { return math.Min(b.Open, b.Close) - b.Low }

// Midpoint is the middle of the body.
func Midpoint(b domain.Bar) float64 { return (b.Open + b.Close) / 2 }

// IsBullish reports close above open.
func IsBullish(b domain.Bar) bool { return b.Close > b.Open }

// IsBearish reports close below open.
func IsBearish(b domain.Bar) bool { return b.Close < b.Open }

func bodyRatio(b domain.Bar) (float64, bool) {
	r := Range(b)
	if r <= 0 {
		return 0, false
	}
	return Body(b) / r, true
}

func isSmallBody(b domain.Bar) bool {
	ratio, ok := bodyRatio(b)
	return ok && ratio <= smallBodyRatio
}

func isLongBody(b domain.Bar) bool {
	ratio, ok := bodyRatio(b)
	return ok && ratio >= longBodyRatio
}

// ---------------------------------------------------------------------------
// Single-bar patterns
// ---------------------------------------------------------------------------

// IsDoji reports a bar whose body is negligible relative to its range.
func IsDoji(b domain.Bar) bool {
	ratio, ok := bodyRatio(b)
	return ok && ratio <= dojiBodyRatio
}

// IsMarubozu reports a bar that is almost all body.
func IsMarubozu(b domain.Bar) bool {
	ratio, ok := bodyRatio(b)
	return ok && ratio >= marubozuBodyRatio
}

// IsHammer reports a small body at the top of the range with a long lower
// shadow.
func IsHammer(b domain.Bar) bool {
	if !isSmallBody(b) {
		return false
	}
	body := math.Max(Body(b), Range(b)*0.01)
	return LowerShadow(b) >= shadowMultiple*body && UpperShadow(b) <= tinyShadowRatio*Range(b)
}

// IsInvertedHammer reports a small body at the bottom of the range with a
// long upper shadow.
func IsInvertedHammer(b domain.Bar) bool {
	if !isSmallBody(b) {
		return false
	}
	body := math.Max(Body(b), Range(b)*0.01)
	return UpperShadow(b) >= shadowMultiple*body && LowerShadow(b) <= tinyShadowRatio*Range(b)
}

// IsShootingStar is an inverted hammer shape after an advance: the bar opens
// above the prior close.
func IsShootingStar(prev, cur domain.Bar) bool {
	return IsBullish(prev) && cur.Open >= prev.Close && IsInvertedHammer(cur)
}

// IsHangingMan is a hammer shape after an advance.
func IsHangingMan(prev, cur domain.Bar) bool {
	return IsBullish(prev) && cur.Open >= prev.Close && IsHammer(cur)
}

// ---------------------------------------------------------------------------
// Two-bar patterns
// ---------------------------------------------------------------------------

// IsBullishEngulfing reports a bullish body that fully covers the prior
// bearish body.
func IsBullishEngulfing(prev, cur domain.Bar) bool {
	return IsBearish(prev) && IsBullish(cur) &&
		cur.Open <= prev.Close && cur.Close >= prev.Open &&
		Body(cur) > Body(prev)
}

// IsBearishEngulfing reports a bearish body that fully covers the prior
// bullish body.
func IsBearishEngulfing(prev, cur domain.Bar) bool {
	return IsBullish(prev) && IsBearish(cur) &&
		cur.Open >= prev.Close && cur.Close <= prev.Open &&
		Body(cur) > Body(prev)
}

// IsPiercingLine reports a bullish bar opening below the prior low and
// closing above the prior body's midpoint but below its open.
func IsPiercingLine(prev, cur domain.Bar) bool {
	return IsBearish(prev) && isLongBody(prev) && IsBullish(cur) &&
		cur.Open < prev.Low &&
		cur.Close > Midpoint(prev) && cur.Close < prev.Open
}

// IsDarkCloudCover mirrors IsPiercingLine for tops.
func IsDarkCloudCover(prev, cur domain.Bar) bool {
	return IsBullish(prev) && isLongBody(prev) && IsBearish(cur) &&
		cur.Open > prev.High &&
		cur.Close < Midpoint(prev) && cur.Close > prev.Open
}

// IsBullishHarami reports a small bullish body inside a long bearish body.
func IsBullishHarami(prev, cur domain.Bar) bool {
	return IsBearish(prev) && isLongBody(prev) && IsBullish(cur) &&
		cur.Open > prev.Close && cur.Close < prev.Open &&
		Body(cur) < Body(prev)
}

// IsBearishHarami reports a small bearish body inside a long bullish body.
func IsBearishHarami(prev, cur domain.Bar) bool {
	return IsBullish(prev) && isLongBody(prev) && IsBearish(cur) &&
		cur.Open < prev.Close && cur.Close > prev.Open &&
		Body(cur) < Body(prev)
}

// IsInsideBar reports a bar whose range lies within the prior bar's range.
func IsInsideBar(prev, cur domain.Bar) bool {
	return cur.High < prev.High && cur.Low > prev.Low
}

// IsTweezerBottom reports equal lows with a bearish then bullish bar.
func IsTweezerBottom(prev, cur domain.Bar) bool {
	return IsBearish(prev) && IsBullish(cur) && nearlyEqual(prev.Low, cur.Low)
}

// IsTweezerTop reports equal highs with a bullish then bearish bar.
func IsTweezerTop(prev, cur domain.Bar) bool {
	return IsBullish(prev) && IsBearish(cur) && nearlyEqual(prev.High, cur.High)
}

func nearlyEqual(a, b float64) bool {
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= scale*1e-4
}

// ---------------------------------------------------------------------------
// Three-bar patterns
// ---------------------------------------------------------------------------

// IsMorningStar reports a long bearish bar, a small-bodied bar that opens
// below its close, then a bullish bar closing above the first bar's
// midpoint.
func IsMorningStar(a, b, c domain.Bar) bool {
	return IsBearish(a) && isLongBody(a) &&
		isSmallBody(b) && math.Max(b.Open, b.Close) < a.Close &&
		IsBullish(c) && c.Close > Midpoint(a)
}

// IsEveningStar mirrors IsMorningStar for tops.
func IsEveningStar(a, b, c domain.Bar) bool {
	return IsBullish(a) && isLongBody(a) &&
		isSmallBody(b) && math.Min(b.Open, b.Close) > a.Close &&
		IsBearish(c) && c.Close < Midpoint(a)
}

// IsThreeWhiteSoldiers reports three rising bullish bars, each opening
// inside the previous body.
func IsThreeWhiteSoldiers(a, b, c domain.Bar) bool {
	return IsBullish(a) && IsBullish(b) && IsBullish(c) &&
		b.Close > a.Close && c.Close > b.Close &&
		b.Open > a.Open && b.Open < a.Close &&
		c.Open > b.Open && c.Open < b.Close
}

// IsThreeBlackCrows reports three falling bearish bars, each opening inside
// the previous body.
func IsThreeBlackCrows(a, b, c domain.Bar) bool {
	return IsBearish(a) && IsBearish(b) && IsBearish(c) &&
		b.Close < a.Close && c.Close < b.Close &&
		b.Open < a.Open && b.Open > a.Close &&
		c.Open < b.Open && c.Open > b.Close
}
