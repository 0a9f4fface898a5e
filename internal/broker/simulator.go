package broker

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stratlab/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// simPosition is a net position plus the bracket legs attached to it.
type simPosition struct {
	qty      float64 // signed: negative is short
	avgPrice float64
	stop     float64
	target   float64
}

// SimulatorBroker implements the Broker interface for paper trading. It
// tracks cash, positions and orders in memory. Market orders fill at the
// last price set with SetPrice; limit orders rest until the price crosses
// them. Bracket legs close the position when SetPrice reaches them.
type SimulatorBroker struct {
	mu          sync.Mutex
	cash        float64
	defaults    func(symbol string) domain.Instrument
	instruments map[string]domain.Instrument
	prices      map[string]float64
	positions   map[string]*simPosition
	orders      map[string]*domain.Order
	now         func() time.Time
}

// NewSimulatorBroker creates a SimulatorBroker holding cash. defaults
// supplies instrument metadata for symbols not registered with
// SetInstrument; nil selects two price and four size decimals.
func NewSimulatorBroker(cash float64, defaults func(symbol string) domain.Instrument) *SimulatorBroker {
	if defaults == nil {
		defaults = func(symbol string) domain.Instrument {
			return domain.Instrument{Symbol: symbol, PricePrecision: 2, SizePrecision: 4}
		}
	}
	return &SimulatorBroker{
		cash:        cash,
		defaults:    defaults,
		instruments: make(map[string]domain.Instrument),
		prices:      make(map[string]float64),
		positions:   make(map[string]*simPosition),
		orders:      make(map[string]*domain.Order),
		now:         time.Now,
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// SetInstrument registers metadata for inst.Symbol.
func (b *SimulatorBroker) SetInstrument(inst domain.Instrument) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instruments[inst.Symbol] = inst
}

// SetPrice records the latest price for symbol, fills resting limit orders
// it crosses and triggers any bracket leg it reaches.
func (b *SimulatorBroker) SetPrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = price

	for _, id := range b.orderIDs() {
		o := b.orders[id]
		if o.Symbol != symbol || o.Status != domain.OrderStatusNew {
			continue
		}
		if crossed(o, price) {
			b.fill(o, o.LimitPrice)
		}
	}

	pos, ok := b.positions[symbol]
	if !ok {
		return
	}
	long := pos.qty > 0
	hitStop := pos.stop > 0 && ((long && price <= pos.stop) || (!long && price >= pos.stop))
	hitTarget := pos.target > 0 && !math.IsInf(pos.target, 0) &&
		((long && price >= pos.target) || (!long && price <= pos.target))
	if !hitStop && !hitTarget {
		return
	}
	exit := &domain.Order{
		ID:     uuid.NewString(),
		Symbol: symbol,
		Side:   domain.OrderSideSell,
		Type:   domain.OrderTypeMarket,
		Qty:    math.Abs(pos.qty),
	}
	if !long {
		exit.Side = domain.OrderSideBuy
	}
	exit.CreatedAt = b.now()
	b.orders[exit.ID] = exit
	b.fill(exit, price)
}

func crossed(o *domain.Order, price float64) bool {
	if o.Type != domain.OrderTypeLimit {
		return false
	}
	if o.Side == domain.OrderSideBuy {
		return price <= o.LimitPrice
	}
	return price >= o.LimitPrice
}

// orderIDs returns order ids in a stable order so fills are deterministic.
func (b *SimulatorBroker) orderIDs() []string {
	ids := make([]string, 0, len(b.orders))
	for id := range b.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, c := b.orders[ids[i]], b.orders[ids[j]]
		if !a.CreatedAt.Equal(c.CreatedAt) {
			return a.CreatedAt.Before(c.CreatedAt)
		}
		return ids[i] < ids[j]
	})
	return ids
}

func (b *SimulatorBroker) instrument(symbol string) domain.Instrument {
	if inst, ok := b.instruments[symbol]; ok {
		return inst
	}
	return b.defaults(symbol)
}

// fill executes o at price and nets it into the symbol's position. The
// caller holds b.mu.
func (b *SimulatorBroker) fill(o *domain.Order, price float64) {
	fee := b.instrument(o.Symbol).TradingFee
	notional := o.Qty * price
	signed := o.Qty
	if o.Side == domain.OrderSideBuy {
		b.cash -= notional * (1 + fee)
	} else {
		b.cash += notional * (1 - fee)
		signed = -o.Qty
	}

	pos, ok := b.positions[o.Symbol]
	if !ok {
		pos = &simPosition{}
		b.positions[o.Symbol] = pos
	}
	switch {
	case pos.qty == 0 || (pos.qty > 0) == (signed > 0):
		total := pos.qty + signed
		pos.avgPrice = (pos.avgPrice*math.Abs(pos.qty) + price*o.Qty) / math.Abs(total)
		pos.qty = total
	case math.Abs(signed) > math.Abs(pos.qty):
		// Flips through flat: the remainder opens at the fill price.
		pos.qty += signed
		pos.avgPrice = price
		pos.stop, pos.target = 0, 0
	default:
		pos.qty += signed
	}
	if o.StopLoss > 0 || o.TakeProfit > 0 {
		pos.stop, pos.target = o.StopLoss, o.TakeProfit
	}
	if pos.qty == 0 {
		delete(b.positions, o.Symbol)
	}

	o.Status = domain.OrderStatusFilled
	o.FilledQty = o.Qty
	o.FilledAvgPrice = price
	o.UpdatedAt = b.now()
}

// SubmitOrder records the order and fills it when possible. A market
// order needs a price set with SetPrice for its symbol.
func (b *SimulatorBroker) SubmitOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	o := *order
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Type == "" {
		o.Type = domain.OrderTypeMarket
	}
	o.Status = domain.OrderStatusNew
	o.CreatedAt = b.now()
	o.UpdatedAt = o.CreatedAt

	price, ok := b.prices[o.Symbol]
	if o.Type == domain.OrderTypeMarket && !ok {
		o.Status = domain.OrderStatusRejected
		b.orders[o.ID] = &o
		return nil, fmt.Errorf("%w: no price for %s", ErrInvalidOrder, o.Symbol)
	}
	b.orders[o.ID] = &o

	switch {
	case o.Type == domain.OrderTypeMarket:
		b.fill(&o, price)
	case ok && crossed(&o, price):
		b.fill(&o, o.LimitPrice)
	}
	out := o
	return &out, nil
}

// CancelOrder marks a resting order as cancelled. Cancelling a filled
// or already cancelled order is a no-op.
func (b *SimulatorBroker) CancelOrder(_ context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if o.Status == domain.OrderStatusNew {
		o.Status = domain.OrderStatusCancelled
		o.UpdatedAt = b.now()
	}
	return nil
}

// Order returns a copy of the order with the given id.
func (b *SimulatorBroker) Order(orderID string) (domain.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// GetPositions returns all simulated positions sorted by symbol.
func (b *SimulatorBroker) GetPositions(_ context.Context) ([]domain.Holding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Holding, 0, len(b.positions))
	for sym, p := range b.positions {
		price, ok := b.prices[sym]
		if !ok {
			price = p.avgPrice
		}
		h := domain.Holding{
			Symbol:        sym,
			Side:          domain.SideLong,
			Qty:           math.Abs(p.qty),
			AvgEntryPrice: p.avgPrice,
			MarketValue:   p.qty * price,
			UnrealizedPL:  p.qty * (price - p.avgPrice),
		}
		if p.qty < 0 {
			h.Side = domain.SideShort
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// GetAccount values open positions at their last price.
func (b *SimulatorBroker) GetAccount(_ context.Context) (*domain.AccountInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for sym, p := range b.positions {
		price, ok := b.prices[sym]
		if !ok {
			price = p.avgPrice
		}
		equity += p.qty * price
	}
	return &domain.AccountInfo{
		Equity:      equity,
		Cash:        b.cash,
		BuyingPower: max(b.cash, 0),
	}, nil
}

// GetInstrument returns the registered metadata for symbol or its default.
func (b *SimulatorBroker) GetInstrument(_ context.Context, symbol string) (*domain.Instrument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst := b.instrument(symbol)
	inst.Symbol = symbol
	return &inst, nil
}
