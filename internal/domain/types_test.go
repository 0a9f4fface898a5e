package domain

import (
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 || bar.Volume != 0 {
		t.Error("expected zero OHLCV values for zero-value Bar")
	}

	// Verify Order can be instantiated with zero values.
	order := Order{}
	if order.ID != "" || order.Side != "" || order.Type != "" || order.Status != "" {
		t.Error("expected empty identifiers for zero-value Order")
	}
	if order.Qty != 0 || order.FilledQty != 0 || order.FilledAvgPrice != 0 {
		t.Error("expected zero Qty/FilledQty/FilledAvgPrice for zero-value Order")
	}

	// Verify enum constants are defined correctly.
	if OrderSideBuy != "buy" {
		t.Errorf("OrderSideBuy = %q, want %q", OrderSideBuy, "buy")
	}
	if SideLong != "long" || SideShort != "short" {
		t.Error("Side constants have unexpected values")
	}

	pos := Position{
		Side:       SideLong,
		EntryTime:  time.Now(),
		EntryPrice: 100,
		Size:       2,
	}
	if pos.Side != SideLong {
		t.Errorf("pos.Side = %q, want %q", pos.Side, SideLong)
	}
}

func TestSideOpposite(t *testing.T) {
	if got := SideLong.Opposite(); got != SideShort {
		t.Errorf("SideLong.Opposite() = %q, want %q", got, SideShort)
	}
	if got := SideShort.Opposite(); got != SideLong {
		t.Errorf("SideShort.Opposite() = %q, want %q", got, SideLong)
	}
}

func TestSignalFor(t *testing.T) {
	s := Signal{Long: true}
	if !s.For(SideLong) || s.For(SideShort) {
		t.Errorf("Signal{Long:true}.For mismatch: long=%v short=%v", s.For(SideLong), s.For(SideShort))
	}
	if None().Any() {
		t.Error("None().Any() = true, want false")
	}
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("4h")
	if err != nil {
		t.Fatalf("ParseTimeframe(4h) returned error: %v", err)
	}
	if tf.Duration() != 4*time.Hour {
		t.Errorf("Duration() = %v, want %v", tf.Duration(), 4*time.Hour)
	}

	if _, err := ParseTimeframe("7m"); err == nil {
		t.Error("ParseTimeframe(7m) should fail")
	}
}

func TestEntryOrderSide(t *testing.T) {
	if got := EntryOrderSide(SideLong); got != OrderSideBuy {
		t.Errorf("EntryOrderSide(long) = %q, want %q", got, OrderSideBuy)
	}
	if got := EntryOrderSide(SideShort); got != OrderSideSell {
		t.Errorf("EntryOrderSide(short) = %q, want %q", got, OrderSideSell)
	}
}

func TestPathSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
		crypto bool
	}{
		{"aapl", "AAPL", false},
		{"BTC/USD", "BTC_USD", true},
	}
	for _, tt := range tests {
		if got := PathSymbol(tt.symbol); got != tt.want {
			t.Errorf("PathSymbol(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
		if got := IsCrypto(tt.symbol); got != tt.crypto {
			t.Errorf("IsCrypto(%q) = %v, want %v", tt.symbol, got, tt.crypto)
		}
	}
	if got := SymbolFromPath("BTC_USD"); got != "BTC/USD" {
		t.Errorf("SymbolFromPath(BTC_USD) = %q, want BTC/USD", got)
	}
}
