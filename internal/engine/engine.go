// Package engine replays historical bars through a strategy and its risk
// manager, producing a ledger of closed trades.
package engine

import (
	"log/slog"

	"stratlab/internal/domain"
	"stratlab/internal/risk"
	"stratlab/internal/strategy"
)

// Config holds the account parameters of a replay.
type Config struct {
	// InitialCapital is the account size positions are sized against.
	InitialCapital float64
	// Compound sizes each position against initial capital plus realized
	// profit instead of initial capital alone.
	Compound bool
}

// Engine drives the FLAT → OPEN → FLAT state machine over a bar series.
// An Engine holds no per-run state; Run may be called concurrently.
type Engine struct {
	strategy strategy.Strategy
	risk     *risk.Manager
	cfg      Config
	log      *slog.Logger
}

// New creates an Engine. A nil logger selects slog.Default().
func New(s strategy.Strategy, rm *risk.Manager, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		strategy: s,
		risk:     rm,
		cfg:      cfg,
		log:      log.With("component", "engine", "strategy", s.ID()),
	}
}

// Run replays bars and returns the ledger of closed trades.
//
// A candidate entry at bar i opens a position at the close of bar i. From
// bar i+1 the position is checked each bar: stop-loss and take-profit
// first, then the strategy's exit signal, then trailing adjustment. At most
// one state transition happens per bar, entries on the final bar are
// ignored, and a position still open at the final bar is closed at its
// close.
func (e *Engine) Run(bars []domain.Bar) *Ledger {
	ledger := NewLedger()
	if len(bars) == 0 {
		e.log.Warn("empty bar series")
		return ledger
	}

	cands := candidates(bars, e.strategy, e.log)
	next := 0
	realized := 0.0
	last := len(bars) - 1

	var pos *domain.Position
	for i := range bars {
		if pos != nil {
			if tr, closed := e.checkExit(pos, bars[:i+1]); closed {
				ledger.Append(tr)
				realized += tr.Profit
				pos = nil
			}
			continue
		}

		for next < len(cands) && cands[next].Index < i {
			next++
		}
		if next >= len(cands) || cands[next].Index != i || i == last {
			continue
		}

		account := e.cfg.InitialCapital
		if e.cfg.Compound {
			account += realized
		}
		pos = e.open(cands[next].Side, i, bars[:i+1], account)
	}

	if pos != nil {
		ledger.Append(e.close(pos, bars[last], last, bars[last].Close, domain.ExitEndOfData))
	}
	return ledger
}

// open builds a position at the close of the last bar of prefix, or returns
// nil when the risk manager sizes it at zero.
func (e *Engine) open(side domain.Side, i int, prefix []domain.Bar, account float64) *domain.Position {
	bar := prefix[len(prefix)-1]
	entry := bar.Close
	stop, target := e.risk.Prices(side, entry, prefix)
	size := e.risk.PositionSize(account, entry, stop)
	if size <= 0 {
		e.log.Debug("skipping zero-size entry", "bar", i, "side", side)
		return nil
	}

	e.log.Debug("entered trade",
		"side", side,
		"bar", i,
		"price", entry,
		"stop", stop,
		"target", target,
		"size", size,
	)
	return &domain.Position{
		Side:       side,
		EntryIndex: i,
		EntryTime:  bar.Timestamp,
		EntryPrice: entry,
		Size:       size,
		StopLoss:   stop,
		TakeProfit: target,
	}
}

// checkExit evaluates the open position against the last bar of prefix.
func (e *Engine) checkExit(pos *domain.Position, prefix []domain.Bar) (domain.TradeRecord, bool) {
	i := len(prefix) - 1
	bar := prefix[i]

	if reason, raw, ok := risk.ExitReason(pos.Side, pos.StopLoss, pos.TakeProfit, bar); ok {
		return e.close(pos, bar, i, raw, reason), true
	}

	if e.safeSignal(e.strategy.Exit, prefix).For(pos.Side) {
		return e.close(pos, bar, i, bar.Close, domain.ExitSignal), true
	}

	pos.StopLoss = e.risk.Trail(pos.Side, pos.StopLoss, bar)
	return domain.TradeRecord{}, false
}

// close settles pos at raw, clamped between its stop and target.
func (e *Engine) close(pos *domain.Position, bar domain.Bar, i int, raw float64, reason domain.ExitReason) domain.TradeRecord {
	exit := risk.ClampExit(pos.StopLoss, pos.TakeProfit, raw)

	profit := (exit - pos.EntryPrice) * pos.Size
	if pos.Side == domain.SideShort {
		profit = (pos.EntryPrice - exit) * pos.Size
	}

	e.log.Debug("exited trade",
		"side", pos.Side,
		"bar", i,
		"price", exit,
		"profit", profit,
		"reason", reason,
	)
	return domain.TradeRecord{
		Side:       pos.Side,
		EntryTime:  pos.EntryTime,
		ExitTime:   bar.Timestamp,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exit,
		StopLoss:   pos.StopLoss,
		TakeProfit: pos.TakeProfit,
		Size:       pos.Size,
		Profit:     profit,
		Reason:     reason,
		BarsHeld:   i - pos.EntryIndex,
	}
}

// safeSignal calls a strategy hook with panic recovery; a panicking hook
// yields no signal.
func (e *Engine) safeSignal(fn func([]domain.Bar) domain.Signal, bars []domain.Bar) (sig domain.Signal) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("strategy panicked", "error", r, "bar", len(bars)-1)
			sig = domain.None()
		}
	}()
	return fn(bars)
}
