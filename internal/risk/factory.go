package risk

import (
	"errors"
	"fmt"

	"stratlab/internal/domain"
)

var (
	// ErrUnknownFinderType is returned for an unrecognised finder type.
	ErrUnknownFinderType = errors.New("unknown finder type")
	// ErrMissingParam is returned when a required parameter is absent.
	ErrMissingParam = errors.New("missing finder parameter")
	// ErrInvalidParam is returned when a parameter is out of range.
	ErrInvalidParam = errors.New("invalid finder parameter")
)

func param(cfg domain.FinderConfig, key string) (float64, error) {
	v, ok := cfg.Params[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrMissingParam, cfg.Type, key)
	}
	return v, nil
}

func positive(cfg domain.FinderConfig, key string) (float64, error) {
	v, err := param(cfg, key)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %s.%s must be positive, got %v", ErrInvalidParam, cfg.Type, key, v)
	}
	return v, nil
}

// optionalPositive is optional for keys that must be positive when set.
func optionalPositive(cfg domain.FinderConfig, key string, def float64) (float64, error) {
	if _, ok := cfg.Params[key]; !ok {
		return def, nil
	}
	return positive(cfg, key)
}

func optional(cfg domain.FinderConfig, key string, def float64) float64 {
	if v, ok := cfg.Params[key]; ok {
		return v
	}
	return def
}

// StopLossFromConfig builds a StopLossFinder.
//
//	fixed:    pct
//	atr:      period, multiplier
//	swing:    bars, buffer (optional)
//	trailing: trail_pct, step (optional), max_iterations (optional), and a
//	          base of either base_pct or atr_period + atr_multiplier
func StopLossFromConfig(cfg domain.FinderConfig) (StopLossFinder, error) {
	switch cfg.Type {
	case "fixed":
		pct, err := positive(cfg, "pct")
		if err != nil {
			return nil, err
		}
		return NewFixedPercentStop(pct), nil

	case "atr":
		period, err := positive(cfg, "period")
		if err != nil {
			return nil, err
		}
		mult, err := positive(cfg, "multiplier")
		if err != nil {
			return nil, err
		}
		return NewATRStop(int(period), mult), nil

	case "swing":
		bars, err := positive(cfg, "bars")
		if err != nil {
			return nil, err
		}
		return NewSwingStop(int(bars), optional(cfg, "buffer", 0)), nil

	case "trailing":
		trail, err := positive(cfg, "trail_pct")
		if err != nil {
			return nil, err
		}
		var base StopLossFinder
		if _, ok := cfg.Params["atr_period"]; ok {
			period, err := positive(cfg, "atr_period")
			if err != nil {
				return nil, err
			}
			mult, err := optionalPositive(cfg, "atr_multiplier", 2)
			if err != nil {
				return nil, err
			}
			base = NewATRStop(int(period), mult)
		} else {
			pct, err := optionalPositive(cfg, "base_pct", trail)
			if err != nil {
				return nil, err
			}
			base = NewFixedPercentStop(pct)
		}
		return NewTrailingStop(base, trail,
			optional(cfg, "step", 0),
			int(optional(cfg, "max_iterations", DefaultMaxIterations))), nil

	default:
		return nil, fmt.Errorf("%w: stop loss %q", ErrUnknownFinderType, cfg.Type)
	}
}

// TakeProfitFromConfig builds a TakeProfitFinder.
//
//	risk_reward: ratio
//	fixed:       pct
//	none
func TakeProfitFromConfig(cfg domain.FinderConfig) (TakeProfitFinder, error) {
	switch cfg.Type {
	case "risk_reward":
		ratio, err := positive(cfg, "ratio")
		if err != nil {
			return nil, err
		}
		return NewRiskRewardTarget(ratio), nil
	case "fixed":
		pct, err := positive(cfg, "pct")
		if err != nil {
			return nil, err
		}
		return NewFixedPercentTarget(pct), nil
	case "none", "":
		return NoTarget{}, nil
	default:
		return nil, fmt.Errorf("%w: take profit %q", ErrUnknownFinderType, cfg.Type)
	}
}
