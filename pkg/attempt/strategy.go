package attempt

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrUnknownStrategy = errors.New("unknown attempts strategy")

// Strategy selects how the delay between two failed attempts evolves.
type Strategy int

const (
	// StrategyConstant keeps the base delay between every attempt.
	StrategyConstant Strategy = iota
	// StrategyExponential doubles the delay after each failed attempt.
	StrategyExponential
)

func (s Strategy) String() string {
	switch s {
	case StrategyConstant:
		return "constant"
	case StrategyExponential:
		return "exponential"
	default:
		return "unknown"
	}
}

// MaxDelay is the saturation value of computed delays.
const MaxDelay = time.Duration(math.MaxInt64)

// NominalDelay returns the delay, jitter excluded, to wait after the failed
// attempt of the given zero-based index. Exponential delays saturate at
// MaxDelay.
func (s Strategy) NominalDelay(base time.Duration, attemptIndex int) time.Duration {
	switch s {
	case StrategyExponential:
		if base <= 0 {
			return base
		}

		if attemptIndex >= 63 || base > MaxDelay>>attemptIndex {
			return MaxDelay
		}

		return base << attemptIndex
	default:
		return base
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	switch s {
	case StrategyConstant, StrategyExponential:
		return []byte(s.String()), nil
	default:
		return nil, errors.Wrapf(ErrUnknownStrategy, "%d", int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	strategy, err := ParseStrategy(string(text))
	if err != nil {
		return errors.WithStack(err)
	}

	*s = strategy

	return nil
}

func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "constant":
		return StrategyConstant, nil
	case "exponential":
		return StrategyExponential, nil
	default:
		return StrategyConstant, errors.Wrapf(ErrUnknownStrategy, "'%s'", raw)
	}
}
