package execid

import (
	"fmt"
	"regexp"
	"strconv"
)

var durationPattern = regexp.MustCompile(`^(\d+)\s*(ms|s|seconds?|m|minutes?|h|hours?|d|days?)$`)

var unitMultipliers = map[string]int64{
	"ms":      1,
	"s":       1000,
	"second":  1000,
	"seconds": 1000,
	"m":       60 * 1000,
	"minute":  60 * 1000,
	"minutes": 60 * 1000,
	"h":       60 * 60 * 1000,
	"hour":    60 * 60 * 1000,
	"hours":   60 * 60 * 1000,
	"d":       24 * 60 * 60 * 1000,
	"day":     24 * 60 * 60 * 1000,
	"days":    24 * 60 * 60 * 1000,
}

// InvalidDurationError reports a duration input that does not match the
// number-or-`<digits><unit>`-string contract. It carries no
// function.ErrKind of its own; function.FromError converts it to the
// generic Error kind, not InvalidInput.
type InvalidDurationError struct {
	Input any
}

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid duration: %v", e.Input)
}

// ParseDuration accepts a number (already milliseconds) or a string of the
// form "<digits><unit>" (unit in ms, s, m, h, d, full or abbreviated) and
// returns the equivalent number of milliseconds. It rejects negative values
// and malformed strings with *InvalidDurationError.
func ParseDuration(d any) (int64, error) {
	switch v := d.(type) {
	case int:
		return nonNegative(int64(v), d)
	case int32:
		return nonNegative(int64(v), d)
	case int64:
		return nonNegative(v, d)
	case float32:
		return nonNegative(int64(v), d)
	case float64:
		return nonNegative(int64(v), d)
	case string:
		m := durationPattern.FindStringSubmatch(v)
		if m == nil {
			return 0, &InvalidDurationError{Input: d}
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, &InvalidDurationError{Input: d}
		}
		mult, ok := unitMultipliers[m[2]]
		if !ok {
			return 0, &InvalidDurationError{Input: d}
		}
		return n * mult, nil
	default:
		return 0, &InvalidDurationError{Input: d}
	}
}

func nonNegative(v int64, original any) (int64, error) {
	if v < 0 {
		return 0, &InvalidDurationError{Input: original}
	}
	return v, nil
}
