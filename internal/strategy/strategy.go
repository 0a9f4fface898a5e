// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry for managing multiple strategy implementations.
package strategy

import (
	"sort"

	"stratlab/internal/domain"
)

// Strategy turns a bar prefix into entry and exit signals. Implementations
// must be pure functions of the prefix: they may not look past its last
// bar and may not keep state between calls, so one instance can serve many
// concurrent replays.
type Strategy interface {
	// Name returns the strategy family (e.g. "sma_cross").
	Name() string

	// ID returns the canonical identity, family plus every parameter.
	ID() string

	// Lookback is the minimum prefix length that can produce a signal.
	Lookback() int

	// Entry reports whether to open a long or short position at the last
	// bar of the prefix.
	Entry(bars []domain.Bar) domain.Signal

	// Exit reports whether to close an open long (Signal.Long) or short
	// (Signal.Short) position at the last bar of the prefix.
	Exit(bars []domain.Bar) domain.Signal
}

// Ready reports whether the prefix is long enough for s.
func Ready(s Strategy, bars []domain.Bar) bool {
	return len(bars) >= s.Lookback()
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its ID(). Registering
// an identical ID replaces the earlier entry.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.ID()] = s
}

// Get retrieves a strategy by ID. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(id string) (Strategy, bool) {
	s, ok := r.strategies[id]
	return s, ok
}

// List returns a sorted slice of all registered strategy IDs.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns the registered strategies ordered by ID.
func (r *Registry) All() []Strategy {
	ids := r.List()
	out := make([]Strategy, len(ids))
	for i, id := range ids {
		out[i] = r.strategies[id]
	}
	return out
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int { return len(r.strategies) }
