package engine

import (
	"log/slog"

	"stratlab/internal/domain"
	"stratlab/internal/strategy"
)

// Candidate is a bar at which the strategy asks to enter.
type Candidate struct {
	Index int
	Side  domain.Side
}

// Candidates evaluates the strategy's entry rule once per bar over the
// growing prefix and returns the bars where exactly one side fires. A bar
// where both sides fire is ambiguous and skipped.
func Candidates(bars []domain.Bar, s strategy.Strategy) []Candidate {
	return candidates(bars, s, slog.Default())
}

func candidates(bars []domain.Bar, s strategy.Strategy, log *slog.Logger) []Candidate {
	var out []Candidate
	start := max(s.Lookback(), 1) - 1
	for i := start; i < len(bars); i++ {
		sig := entrySignal(s, bars[:i+1], log)
		switch {
		case sig.Long && sig.Short:
			log.Debug("ambiguous entry signal", "bar", i)
		case sig.Long:
			out = append(out, Candidate{Index: i, Side: domain.SideLong})
		case sig.Short:
			out = append(out, Candidate{Index: i, Side: domain.SideShort})
		}
	}
	return out
}

func entrySignal(s strategy.Strategy, prefix []domain.Bar, log *slog.Logger) (sig domain.Signal) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("strategy panicked", "error", r, "bar", len(prefix)-1)
			sig = domain.None()
		}
	}()
	return s.Entry(prefix)
}
