package pattern

import "stratlab/internal/domain"

// Bias is the directional tilt of a pattern.
type Bias int

const (
	Neutral Bias = iota
	Bullish
	Bearish
)

// String implements fmt.Stringer.
func (b Bias) String() string {
	switch b {
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "neutral"
	}
}

// Match is a pattern completed at the last bar of a prefix.
type Match struct {
	Name string
	Bias Bias
}

type detector struct {
	name  string
	bias  Bias
	depth int
	fn    func(bars []domain.Bar) bool
}

// detectors run in a fixed order so Detect output is deterministic.
var detectors = []detector{
	{"doji", Neutral, 1, func(b []domain.Bar) bool { return IsDoji(b[0]) }},
	{"hammer", Bullish, 1, func(b []domain.Bar) bool { return IsHammer(b[0]) }},
	{"inverted_hammer", Bullish, 1, func(b []domain.Bar) bool { return IsInvertedHammer(b[0]) }},
	{"bullish_marubozu", Bullish, 1, func(b []domain.Bar) bool { return IsMarubozu(b[0]) && IsBullish(b[0]) }},
	{"bearish_marubozu", Bearish, 1, func(b []domain.Bar) bool { return IsMarubozu(b[0]) && IsBearish(b[0]) }},
	{"shooting_star", Bearish, 2, func(b []domain.Bar) bool { return IsShootingStar(b[0], b[1]) }},
	{"hanging_man", Bearish, 2, func(b []domain.Bar) bool { return IsHangingMan(b[0], b[1]) }},
	{"bullish_engulfing", Bullish, 2, func(b []domain.Bar) bool { return IsBullishEngulfing(b[0], b[1]) }},
	{"bearish_engulfing", Bearish, 2, func(b []domain.Bar) bool { return IsBearishEngulfing(b[0], b[1]) }},
	{"piercing_line", Bullish, 2, func(b []domain.Bar) bool { return IsPiercingLine(b[0], b[1]) }},
	{"dark_cloud_cover", Bearish, 2, func(b []domain.Bar) bool { return IsDarkCloudCover(b[0], b[1]) }},
	{"bullish_harami", Bullish, 2, func(b []domain.Bar) bool { return IsBullishHarami(b[0], b[1]) }},
	{"bearish_harami", Bearish, 2, func(b []domain.Bar) bool { return IsBearishHarami(b[0], b[1]) }},
	{"inside_bar", Neutral, 2, func(b []domain.Bar) bool { return IsInsideBar(b[0], b[1]) }},
	{"tweezer_bottom", Bullish, 2, func(b []domain.Bar) bool { return IsTweezerBottom(b[0], b[1]) }},
	{"tweezer_top", Bearish, 2, func(b []domain.Bar) bool { return IsTweezerTop(b[0], b[1]) }},
	{"morning_star", Bullish, 3, func(b []domain.Bar) bool { return IsMorningStar(b[0], b[1], b[2]) }},
	{"evening_star", Bearish, 3, func(b []domain.Bar) bool { return IsEveningStar(b[0], b[1], b[2]) }},
	{"three_white_soldiers", Bullish, 3, func(b []domain.Bar) bool { return IsThreeWhiteSoldiers(b[0], b[1], b[2]) }},
	{"three_black_crows", Bearish, 3, func(b []domain.Bar) bool { return IsThreeBlackCrows(b[0], b[1], b[2]) }},
}

// Detect returns every pattern that completes at the last bar of bars.
func Detect(bars []domain.Bar) []Match {
	var out []Match
	for _, d := range detectors {
		if len(bars) < d.depth {
			continue
		}
		if d.fn(bars[len(bars)-d.depth:]) {
			out = append(out, Match{Name: d.name, Bias: d.bias})
		}
	}
	return out
}

// HasBias reports whether any pattern with the given bias completes at the
// last bar.
func HasBias(bars []domain.Bar, bias Bias) bool {
	for _, m := range Detect(bars) {
		if m.Bias == bias {
			return true
		}
	}
	return false
}

// Names lists every pattern Detect knows about.
func Names() []string {
	names := make([]string, len(detectors))
	for i, d := range detectors {
		names[i] = d.name
	}
	return names
}
