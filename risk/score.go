package risk

import (
	"errors"
	"fmt"
)

// Level is the banded risk rating derived from impact x likelihood.
type Level string

const (
	LevelVeryLow  Level = "Very Low"
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelVeryHigh Level = "Very High"
	LevelExtreme  Level = "Extreme"
)

var ErrInvalidInput = errors.New("risk input out of range")

const (
	MinImpact     = 1
	MaxImpact     = 5
	MinLikelihood = 1
	MaxLikelihood = 5
	MinExposure   = 1
	MaxExposure   = 4
)

// Score computes the raw risk score and its banded level.
//
// The raw score is impact * likelihood * exposure (1..100). The band is
// computed from impact * likelihood only; exposure widens the raw score but
// never moves the band. The central authority scores it the same way on both
// the inspection and the residual pass, so both sides stay comparable.
func Score(impact, likelihood, exposure int) (int, Level, error) {
	if impact < MinImpact || impact > MaxImpact {
		return 0, "", fmt.Errorf("%w: impact %d", ErrInvalidInput, impact)
	}
	if likelihood < MinLikelihood || likelihood > MaxLikelihood {
		return 0, "", fmt.Errorf("%w: likelihood %d", ErrInvalidInput, likelihood)
	}
	if exposure < MinExposure || exposure > MaxExposure {
		return 0, "", fmt.Errorf("%w: exposure %d", ErrInvalidInput, exposure)
	}
	raw := impact * likelihood * exposure
	return raw, bandOf(impact * likelihood), nil
}

func bandOf(product int) Level {
	switch {
	case product <= 3:
		return LevelVeryLow
	case product <= 6:
		return LevelLow
	case product <= 12:
		return LevelMedium
	case product <= 18:
		return LevelHigh
	case product <= 23:
		return LevelVeryHigh
	default:
		return LevelExtreme
	}
}
