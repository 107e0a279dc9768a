// Package retry models the retry contract for provider-backed flows as pure
// configuration, independent of any task queue.
package retry

import (
	"math"
	"time"
)

const maxShift = 62

// Policy configures exponential retries for a recurring operation.
type Policy struct {
	// BaseInterval is the delay after the first failure; each further
	// failure doubles it.
	BaseInterval time.Duration
	// MaxAttempts is the number of consecutive failures after which the
	// parent entity is suspended.
	MaxAttempts int
}

// Next returns the delay before the given attempt (1-based), calculated as
// BaseInterval * 2^(attempt-1) with overflow protection.
func (p Policy) Next(attempt int) time.Duration {
	if p.BaseInterval <= 0 {
		return 0
	}

	shift := attempt - 1
	if shift < 0 {
		shift = 0
	} else if shift > maxShift {
		shift = maxShift
	}

	multiplier := int64(1) << shift
	base := int64(p.BaseInterval)
	if base > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(base * multiplier)
}

// Exhausted reports whether the failure count has used up the retry budget.
func (p Policy) Exhausted(failures int) bool {
	return failures >= p.MaxAttempts
}
