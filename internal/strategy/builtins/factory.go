package builtins

import (
	"errors"
	"fmt"
	"strconv"

	"stratlab/internal/domain"
	"stratlab/internal/strategy"
)

var (
	// ErrUnknownStrategyType is returned for an unrecognised strategy type.
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	// ErrMissingParam is returned when a required parameter is absent.
	ErrMissingParam = errors.New("missing strategy parameter")
	// ErrInvalidParam is returned when parameters are inconsistent.
	ErrInvalidParam = errors.New("invalid strategy parameter")
)

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func intParam(cfg domain.StrategyConfig, key string, def int) (int, error) {
	v, ok := cfg.Params[key]
	if !ok {
		if def > 0 {
			return def, nil
		}
		return 0, fmt.Errorf("%w: %s.%s", ErrMissingParam, cfg.Type, key)
	}
	if v < 1 {
		return 0, fmt.Errorf("%w: %s.%s must be >= 1, got %v", ErrInvalidParam, cfg.Type, key, v)
	}
	return int(v), nil
}

func floatParam(cfg domain.StrategyConfig, key string, def float64) float64 {
	if v, ok := cfg.Params[key]; ok {
		return v
	}
	return def
}

// FromConfig builds a strategy from its declarative description. Omitted
// parameters take the defaults used by Defaults.
func FromConfig(cfg domain.StrategyConfig) (strategy.Strategy, error) {
	switch cfg.Type {
	case "sma_cross":
		fast, err := intParam(cfg, "fast", 10)
		if err != nil {
			return nil, err
		}
		slow, err := intParam(cfg, "slow", 30)
		if err != nil {
			return nil, err
		}
		if fast >= slow {
			return nil, fmt.Errorf("%w: sma_cross fast (%d) must be < slow (%d)", ErrInvalidParam, fast, slow)
		}
		return NewSMACross(fast, slow), nil

	case "rsi_reversion":
		period, err := intParam(cfg, "period", 14)
		if err != nil {
			return nil, err
		}
		lo, hi := floatParam(cfg, "oversold", 30), floatParam(cfg, "overbought", 70)
		if lo >= hi {
			return nil, fmt.Errorf("%w: rsi_reversion oversold (%v) must be < overbought (%v)", ErrInvalidParam, lo, hi)
		}
		return NewRSIReversion(period, lo, hi), nil

	case "bollinger_bounce":
		period, err := intParam(cfg, "period", 20)
		if err != nil {
			return nil, err
		}
		return NewBollingerBounce(period, floatParam(cfg, "k", 2)), nil

	case "donchian_breakout":
		period, err := intParam(cfg, "period", 20)
		if err != nil {
			return nil, err
		}
		return NewDonchianBreakout(period), nil

	case "engulfing_trend":
		trend, err := intParam(cfg, "trend", 50)
		if err != nil {
			return nil, err
		}
		return NewEngulfingTrend(trend), nil

	case "pattern_reversal":
		period, err := intParam(cfg, "rsi", 14)
		if err != nil {
			return nil, err
		}
		lo, hi := floatParam(cfg, "oversold", 35), floatParam(cfg, "overbought", 65)
		if lo >= hi {
			return nil, fmt.Errorf("%w: pattern_reversal oversold (%v) must be < overbought (%v)", ErrInvalidParam, lo, hi)
		}
		return NewPatternReversal(period, lo, hi), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.Type)
	}
}

// Types lists every strategy type FromConfig accepts.
func Types() []string {
	return []string{
		"bollinger_bounce",
		"donchian_breakout",
		"engulfing_trend",
		"pattern_reversal",
		"rsi_reversion",
		"sma_cross",
	}
}

// Defaults returns a registry holding one default-parameter instance of
// every built-in strategy.
func Defaults() *strategy.Registry {
	r := strategy.NewRegistry()
	for _, typ := range Types() {
		s, err := FromConfig(domain.StrategyConfig{Type: typ})
		if err != nil {
			// Defaults are static; a failure here is a programming error.
			panic(err)
		}
		r.Register(s)
	}
	return r
}

// Build converts a list of configs into a registry, deduplicated by ID.
func Build(cfgs []domain.StrategyConfig) (*strategy.Registry, error) {
	r := strategy.NewRegistry()
	for i, cfg := range cfgs {
		s, err := FromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("strategy %d: %w", i, err)
		}
		r.Register(s)
	}
	return r, nil
}
