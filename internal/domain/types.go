// Package domain holds the core value types shared across stratlab: bars,
// signals, positions, trade records, instruments and broker-facing orders.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is a single OHLCV sample. A series of bars is strictly ordered by
// Timestamp with no duplicates.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// IsCrypto reports whether symbol is a BASE/QUOTE crypto pair.
func IsCrypto(symbol string) bool { return strings.Contains(symbol, "/") }

// PathSymbol converts a symbol to a form usable as a file or directory name:
// upper case with "/" replaced by "_".
func PathSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "_")
}

// SymbolFromPath reverses PathSymbol.
func SymbolFromPath(name string) string {
	return strings.ReplaceAll(name, "_", "/")
}

// Timeframe is the bar interval label used by data sources and identities.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe30m: 30 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// ParseTimeframe validates a timeframe label.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the length of one bar, or zero for an unknown label.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// String implements fmt.Stringer.
func (tf Timeframe) String() string { return string(tf) }

// ---------------------------------------------------------------------------
// Signals and positions
// ---------------------------------------------------------------------------

// Side is the direction of a backtest position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Signal is the pair of booleans a strategy emits for the latest bar of a
// prefix.
type Signal struct {
	Long  bool
	Short bool
}

// None is the empty signal.
func None() Signal { return Signal{} }

// Any reports whether either side fired.
func (s Signal) Any() bool { return s.Long || s.Short }

// For reports whether the signal fired for the given side.
func (s Signal) For(side Side) bool {
	if side == SideLong {
		return s.Long
	}
	return s.Short
}

// Position is the single open position of a replay run.
type Position struct {
	Side       Side
	EntryIndex int
	EntryTime  time.Time
	EntryPrice float64
	Size       float64
	StopLoss   float64
	TakeProfit float64
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitSignal     ExitReason = "signal"
	ExitEndOfData  ExitReason = "end_of_data"
)

// TradeRecord is one closed trade in a ledger. Records are immutable once
// appended.
type TradeRecord struct {
	Side       Side
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	StopLoss   float64
	TakeProfit float64
	Size       float64
	Profit     float64
	Reason     ExitReason
	BarsHeld   int
}

// ---------------------------------------------------------------------------
// Instruments and accounts
// ---------------------------------------------------------------------------

// Instrument carries the exchange metadata the risk manager sizes against.
type Instrument struct {
	Symbol         string
	PricePrecision int32
	SizePrecision  int32
	TradingFee     float64
	MinSize        float64
}

// AccountInfo is a snapshot of account balances.
type AccountInfo struct {
	Equity      float64
	Cash        float64
	BuyingPower float64
}

// Holding is an open position as reported by a broker.
type Holding struct {
	Symbol        string
	Side          Side
	Qty           float64
	AvgEntryPrice float64
	MarketValue   float64
	UnrealizedPL  float64
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderSide is the buy/sell direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "canceled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order is an exchange order, optionally carrying bracket stop-loss and
// take-profit levels.
type Order struct {
	ID             string
	ClientOrderID  string
	Symbol         string
	Side           OrderSide
	Type           OrderType
	Qty            float64
	LimitPrice     float64
	StopLoss       float64
	TakeProfit     float64
	Status         OrderStatus
	FilledQty      float64
	FilledAvgPrice float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EntryOrderSide maps a position side to the order side that opens it.
func EntryOrderSide(s Side) OrderSide {
	if s == SideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// ---------------------------------------------------------------------------
// Declarative configs
// ---------------------------------------------------------------------------

// StrategyConfig describes a strategy instance by type and numeric params.
type StrategyConfig struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params"`
}

// FinderConfig describes a stop-loss or take-profit finder.
type FinderConfig struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params"`
}
