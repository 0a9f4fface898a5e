package engine

import "stratlab/internal/domain"

// Ledger is the append-only list of closed trades of one replay run.
type Ledger struct {
	trades []domain.TradeRecord
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{trades: make([]domain.TradeRecord, 0, 32)}
}

// Append records a closed trade.
func (l *Ledger) Append(t domain.TradeRecord) {
	l.trades = append(l.trades, t)
}

// Len returns the number of closed trades.
func (l *Ledger) Len() int { return len(l.trades) }

// Trades returns a copy of the recorded trades in close order.
func (l *Ledger) Trades() []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(l.trades))
	copy(out, l.trades)
	return out
}

// Profits returns the realized profit of each trade in close order.
func (l *Ledger) Profits() []float64 {
	out := make([]float64, len(l.trades))
	for i, t := range l.trades {
		out[i] = t.Profit
	}
	return out
}
