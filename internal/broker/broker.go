// Package broker defines the Broker interface and provides implementations
// for reading account state and routing bracket orders. Backtests never call
// a broker mid-run; the screener reads equity and instrument metadata from
// one before it starts.
package broker

import (
	"context"
	"errors"

	"stratlab/internal/domain"
)

var (
	// ErrOrderNotFound is returned when cancelling an unknown order.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidOrder is returned for orders that cannot be submitted.
	ErrInvalidOrder = errors.New("invalid order")
)

// Broker abstracts brokerage operations for order execution and account management.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "simulator").
	Name() string

	// GetAccount returns a snapshot of the account's financial metrics.
	GetAccount(ctx context.Context) (*domain.AccountInfo, error)

	// GetInstrument returns sizing and rounding metadata for symbol.
	GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)

	// SubmitOrder sends an order to the brokerage for execution. Non-zero
	// StopLoss and TakeProfit make it a bracket order.
	SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)

	// CancelOrder requests cancellation of an open order by its ID.
	CancelOrder(ctx context.Context, orderID string) error

	// GetPositions returns all current positions held at the brokerage.
	GetPositions(ctx context.Context) ([]domain.Holding, error)
}

func validateOrder(o *domain.Order) error {
	switch {
	case o == nil:
		return ErrInvalidOrder
	case o.Symbol == "":
		return errors.Join(ErrInvalidOrder, errors.New("missing symbol"))
	case o.Qty <= 0:
		return errors.Join(ErrInvalidOrder, errors.New("qty must be positive"))
	case o.Side != domain.OrderSideBuy && o.Side != domain.OrderSideSell:
		return errors.Join(ErrInvalidOrder, errors.New("unknown side "+string(o.Side)))
	case o.Type == domain.OrderTypeLimit && o.LimitPrice <= 0:
		return errors.Join(ErrInvalidOrder, errors.New("limit order without limit price"))
	}
	return nil
}

// InstrumentSource adapts a Broker's instrument lookups to the synchronous
// form backtests size against. Lookups are resolved up front by Preload;
// unknown symbols fall back to defaults.
type InstrumentSource struct {
	defaults    func(symbol string) domain.Instrument
	instruments map[string]domain.Instrument
}

// Preload fetches instrument metadata for every symbol. A failed lookup
// keeps the default for that symbol and is returned joined with the others.
func Preload(ctx context.Context, b Broker, symbols []string, defaults func(symbol string) domain.Instrument) (*InstrumentSource, error) {
	src := &InstrumentSource{defaults: defaults, instruments: make(map[string]domain.Instrument, len(symbols))}
	var errs []error
	for _, sym := range symbols {
		inst, err := b.GetInstrument(ctx, sym)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		src.instruments[sym] = *inst
	}
	return src, errors.Join(errs...)
}

// Instrument returns the preloaded metadata for symbol or its default.
func (s *InstrumentSource) Instrument(symbol string) domain.Instrument {
	if inst, ok := s.instruments[symbol]; ok {
		return inst
	}
	return s.defaults(symbol)
}
