package engine

import (
	"time"

	"github.com/pipegate-dev/pipegate/internal/config"
)

const (
	// DefaultRetryDelay is used when a retry spec sets no delay.
	DefaultRetryDelay = time.Second
	// DefaultMaxRetryDelay caps backoff growth when no max is configured.
	DefaultMaxRetryDelay = 30 * time.Second
)

// CalculateBackoff returns the delay to wait before the given retry
// attempt. attempt is 1-based: attempt 1 is the first retry after the
// initial invocation failed.
func CalculateBackoff(spec *config.RetrySpec, attempt int) time.Duration {
	if spec == nil || attempt < 1 {
		return 0
	}

	delay := spec.Delay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	maxDelay := spec.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxRetryDelay
	}

	var backoff time.Duration
	switch spec.Backoff {
	case "none", "":
		backoff = delay
	case "linear":
		backoff = delay * time.Duration(attempt)
	case "exponential":
		backoff = delay
		for i := 1; i < attempt; i++ {
			backoff *= 2
			if backoff >= maxDelay {
				return maxDelay
			}
		}
	default:
		backoff = delay
	}

	if backoff > maxDelay {
		return maxDelay
	}
	return backoff
}
