// Package screening evaluates the cartesian product of symbols, timeframes,
// strategies and risk finders and ranks the results.
package screening

import (
	"errors"
	"fmt"
	"strings"

	"stratlab/internal/backtest"
	"stratlab/internal/domain"
	"stratlab/internal/risk"
	"stratlab/internal/strategy"
)

// ErrMalformedKey is returned by ParseKey for a key without five parts.
var ErrMalformedKey = errors.New("malformed combination key")

// Grid is the set of dimensions to screen.
type Grid struct {
	Symbols     []string
	Timeframes  []domain.Timeframe
	Strategies  []strategy.Strategy
	StopLosses  []risk.StopLossFinder
	TakeProfits []risk.TakeProfitFinder
}

// Combination is one point of the grid.
type Combination struct {
	Symbol     string
	Timeframe  domain.Timeframe
	Strategy   strategy.Strategy
	StopLoss   risk.StopLossFinder
	TakeProfit risk.TakeProfitFinder
}

// Job converts c into a backtest job over lookback bars.
func (c Combination) Job(lookback int) backtest.Job {
	return backtest.Job{
		Symbol:     c.Symbol,
		Timeframe:  c.Timeframe,
		Strategy:   c.Strategy,
		StopLoss:   c.StopLoss,
		TakeProfit: c.TakeProfit,
		Lookback:   lookback,
	}
}

// Key identifies c as symbol|timeframe|strategy|stop|target.
func (c Combination) Key() string { return c.Job(0).Key() }

// Combinations expands the grid in symbol, timeframe, strategy, stop,
// target order, dropping combinations whose key was already produced. An
// empty TakeProfits dimension means no target.
func (g Grid) Combinations() []Combination {
	tps := g.TakeProfits
	if len(tps) == 0 {
		tps = []risk.TakeProfitFinder{risk.NoTarget{}}
	}

	seen := make(map[string]struct{})
	var out []Combination
	for _, sym := range g.Symbols {
		for _, tf := range g.Timeframes {
			for _, s := range g.Strategies {
				for _, sl := range g.StopLosses {
					for _, tp := range tps {
						c := Combination{Symbol: sym, Timeframe: tf, Strategy: s, StopLoss: sl, TakeProfit: tp}
						k := c.Key()
						if _, dup := seen[k]; dup {
							continue
						}
						seen[k] = struct{}{}
						out = append(out, c)
					}
				}
			}
		}
	}
	return out
}

// KeyParts is a key split into its identity components.
type KeyParts struct {
	Symbol     string
	Timeframe  domain.Timeframe
	Strategy   string
	StopLoss   string
	TakeProfit string
}

// ParseKey splits a combination key.
func ParseKey(key string) (KeyParts, error) {
	parts := strings.Split(key, backtest.KeySeparator)
	if len(parts) != 5 {
		return KeyParts{}, fmt.Errorf("%w: %q has %d parts", ErrMalformedKey, key, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return KeyParts{}, fmt.Errorf("%w: %q has an empty part", ErrMalformedKey, key)
		}
	}
	tf, err := domain.ParseTimeframe(parts[1])
	if err != nil {
		return KeyParts{}, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return KeyParts{
		Symbol:     parts[0],
		Timeframe:  tf,
		Strategy:   parts[2],
		StopLoss:   parts[3],
		TakeProfit: parts[4],
	}, nil
}
