package screening

import (
	"fmt"

	"stratlab/internal/config"
	"stratlab/internal/domain"
	"stratlab/internal/risk"
	"stratlab/internal/strategy"
	"stratlab/internal/strategy/builtins"
)

// DefaultStopLoss is used when a grid names no stop-loss finder.
var DefaultStopLoss = domain.FinderConfig{Type: "fixed", Params: map[string]float64{"pct": 0.02}}

// GridFromConfig builds a grid from its declarative form. No strategies
// selects every built-in at default parameters; no stop losses selects
// DefaultStopLoss; no take profits means no target.
func GridFromConfig(sc config.ScreeningConfig) (Grid, error) {
	g := Grid{Symbols: sc.Symbols}

	for _, s := range sc.Timeframes {
		tf, err := domain.ParseTimeframe(s)
		if err != nil {
			return Grid{}, err
		}
		g.Timeframes = append(g.Timeframes, tf)
	}

	var reg *strategy.Registry
	if len(sc.Strategies) == 0 {
		reg = builtins.Defaults()
	} else {
		var err error
		if reg, err = builtins.Build(sc.Strategies); err != nil {
			return Grid{}, err
		}
	}
	g.Strategies = reg.All()

	sls := sc.StopLosses
	if len(sls) == 0 {
		sls = []domain.FinderConfig{DefaultStopLoss}
	}
	for i, c := range sls {
		sl, err := risk.StopLossFromConfig(c)
		if err != nil {
			return Grid{}, fmt.Errorf("stop loss %d: %w", i, err)
		}
		g.StopLosses = append(g.StopLosses, sl)
	}

	for i, c := range sc.TakeProfits {
		tp, err := risk.TakeProfitFromConfig(c)
		if err != nil {
			return Grid{}, fmt.Errorf("take profit %d: %w", i, err)
		}
		g.TakeProfits = append(g.TakeProfits, tp)
	}
	return g, nil
}
