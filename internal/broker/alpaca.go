package broker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"stratlab/internal/domain"
	"stratlab/internal/util"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// tradingClient is the subset of *alpaca.Client used by AlpacaBroker.
type tradingClient interface {
	GetAccount() (*alpaca.Account, error)
	GetAsset(symbol string) (*alpaca.Asset, error)
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	CancelOrder(orderID string) error
	GetPositions() ([]alpaca.Position, error)
}

// AlpacaOptions configures an AlpacaBroker.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	BaseURL   string

	// Defaults supplies the fee and precision for instruments Alpaca does
	// not describe.
	Defaults func(symbol string) domain.Instrument

	MaxRetries     int
	RetryBaseDelay time.Duration
}

// AlpacaBroker implements the Broker interface using the Alpaca trading API.
type AlpacaBroker struct {
	client     tradingClient
	defaults   func(symbol string) domain.Instrument
	maxRetries int
	retryDelay time.Duration
	log        *slog.Logger
}

// NewAlpacaBroker creates a new AlpacaBroker configured with the given
// credentials and API endpoint.
func NewAlpacaBroker(opts AlpacaOptions) *AlpacaBroker {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
		BaseURL:   opts.BaseURL,
	})
	return newAlpacaBroker(client, opts)
}

func newAlpacaBroker(client tradingClient, opts AlpacaOptions) *AlpacaBroker {
	defaults := opts.Defaults
	if defaults == nil {
		defaults = func(symbol string) domain.Instrument {
			return domain.Instrument{Symbol: symbol, PricePrecision: 2, SizePrecision: 4}
		}
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	delay := opts.RetryBaseDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &AlpacaBroker{
		client:     client,
		defaults:   defaults,
		maxRetries: retries,
		retryDelay: delay,
		log:        slog.Default().With("component", "broker", "broker", "alpaca"),
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

func (b *AlpacaBroker) retry(ctx context.Context, op string, fn func() error) error {
	return util.RetryNotify(ctx, b.maxRetries, b.retryDelay, fn, func(attempt int, err error, wait time.Duration) {
		b.log.Warn("alpaca call failed, retrying", "op", op, "attempt", attempt, "wait", wait, "error", err)
	})
}

// GetAccount returns the current account information from the Alpaca API.
func (b *AlpacaBroker) GetAccount(ctx context.Context) (*domain.AccountInfo, error) {
	var acct *alpaca.Account
	err := b.retry(ctx, "get_account", func() error {
		var err error
		acct, err = b.client.GetAccount()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca get account: %w", err)
	}
	return &domain.AccountInfo{
		Equity:      acct.Equity.InexactFloat64(),
		Cash:        acct.Cash.InexactFloat64(),
		BuyingPower: acct.BuyingPower.InexactFloat64(),
	}, nil
}

// GetInstrument looks up the asset and narrows the configured defaults: a
// non-fractionable asset trades in whole shares with a minimum of one.
func (b *AlpacaBroker) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	var asset *alpaca.Asset
	err := b.retry(ctx, "get_asset", func() error {
		var err error
		asset, err = b.client.GetAsset(symbol)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca get asset %s: %w", symbol, err)
	}
	inst := b.defaults(symbol)
	inst.Symbol = symbol
	if !asset.Fractionable && !domain.IsCrypto(symbol) {
		inst.SizePrecision = 0
		inst.MinSize = max(inst.MinSize, 1)
	}
	return &inst, nil
}

// SubmitOrder places the order. An order carrying both a stop-loss and a
// take-profit is sent as a bracket; one carrying only a stop-loss is sent
// as a one-triggers-other order.
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}
	req := placeOrderRequest(order)

	var placed *alpaca.Order
	err := b.retry(ctx, "place_order", func() error {
		var err error
		placed, err = b.client.PlaceOrder(req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca place order %s: %w", order.Symbol, err)
	}
	b.log.Info("order placed", "symbol", placed.Symbol, "id", placed.ID, "side", placed.Side, "class", req.OrderClass)
	return fromAlpacaOrder(placed, order), nil
}

func placeOrderRequest(o *domain.Order) alpaca.PlaceOrderRequest {
	qty := decimal.NewFromFloat(o.Qty)
	req := alpaca.PlaceOrderRequest{
		Symbol:        o.Symbol,
		Qty:           &qty,
		Side:          alpaca.Side(o.Side),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: o.ClientOrderID,
	}
	if domain.IsCrypto(o.Symbol) {
		req.TimeInForce = alpaca.GTC
	}
	if o.Type == domain.OrderTypeLimit {
		limit := decimal.NewFromFloat(o.LimitPrice)
		req.Type = alpaca.Limit
		req.LimitPrice = &limit
	}

	if o.StopLoss > 0 {
		stop := decimal.NewFromFloat(o.StopLoss)
		req.StopLoss = &alpaca.StopLoss{StopPrice: &stop}
		req.OrderClass = alpaca.OTO
	}
	if o.TakeProfit > 0 && !math.IsInf(o.TakeProfit, 0) {
		target := decimal.NewFromFloat(o.TakeProfit)
		req.TakeProfit = &alpaca.TakeProfit{LimitPrice: &target}
		if req.StopLoss != nil {
			req.OrderClass = alpaca.Bracket
		} else {
			req.OrderClass = alpaca.OTO
		}
	}
	return req
}

func fromAlpacaOrder(a *alpaca.Order, sent *domain.Order) *domain.Order {
	out := *sent
	out.ID = a.ID
	if a.ClientOrderID != "" {
		out.ClientOrderID = a.ClientOrderID
	}
	out.Status = orderStatus(a.Status)
	out.FilledQty = a.FilledQty.InexactFloat64()
	if a.FilledAvgPrice != nil {
		out.FilledAvgPrice = a.FilledAvgPrice.InexactFloat64()
	}
	out.CreatedAt = a.CreatedAt
	out.UpdatedAt = a.UpdatedAt
	return &out
}

func orderStatus(s string) domain.OrderStatus {
	switch strings.ToLower(s) {
	case "filled":
		return domain.OrderStatusFilled
	case "canceled", "cancelled", "expired":
		return domain.OrderStatusCancelled
	case "rejected":
		return domain.OrderStatusRejected
	default:
		return domain.OrderStatusNew
	}
}

// CancelOrder requests cancellation of an open order via the Alpaca API.
func (b *AlpacaBroker) CancelOrder(ctx context.Context, orderID string) error {
	err := b.retry(ctx, "cancel_order", func() error {
		return b.client.CancelOrder(orderID)
	})
	if err != nil {
		return fmt.Errorf("alpaca cancel order %s: %w", orderID, err)
	}
	return nil
}

// GetPositions returns all current positions from the Alpaca account.
func (b *AlpacaBroker) GetPositions(ctx context.Context) ([]domain.Holding, error) {
	var positions []alpaca.Position
	err := b.retry(ctx, "get_positions", func() error {
		var err error
		positions, err = b.client.GetPositions()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca get positions: %w", err)
	}

	out := make([]domain.Holding, 0, len(positions))
	for _, p := range positions {
		h := domain.Holding{
			Symbol:        p.Symbol,
			Side:          domain.SideLong,
			Qty:           p.Qty.Abs().InexactFloat64(),
			AvgEntryPrice: p.AvgEntryPrice.InexactFloat64(),
		}
		if strings.EqualFold(p.Side, "short") {
			h.Side = domain.SideShort
		}
		if p.MarketValue != nil {
			h.MarketValue = p.MarketValue.InexactFloat64()
		}
		if p.UnrealizedPL != nil {
			h.UnrealizedPL = p.UnrealizedPL.InexactFloat64()
		}
		out = append(out, h)
	}
	return out, nil
}
