package strategy

// CrossesAbove reports a crossing of a over b between the previous and the
// current bar.
func CrossesAbove(prevA, prevB, a, b float64) bool {
	return prevA <= prevB && a > b
}

// CrossesBelow reports a crossing of a under b between the previous and the
// current bar.
func CrossesBelow(prevA, prevB, a, b float64) bool {
	return prevA >= prevB && a < b
}
