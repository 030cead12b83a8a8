package orchestrator

import (
	"math"
	"time"
)

// RetryPolicy controls exponential backoff for failed tool calls. Only tools
// registered as idempotent are retried; a non-idempotent tool's first failure
// fails the task.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// Multiplier scales the delay for each subsequent retry.
	Multiplier float64
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration
}

// ShouldRetry reports whether another attempt is allowed after the given
// attempt number failed. Attempts are 1-based, so a policy with MaxRetries=3
// permits four invocations in total.
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt <= p.MaxRetries
}

// Delay returns the backoff before retrying after the given failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
