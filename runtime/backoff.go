// Package runtime drives the delivery path: reconnection, frame dispatch
// and event fan-out. It orchestrates without containing domain rules.
package runtime

import (
	"math"
	"time"
)

// RetryPolicy controls how a dropped connection is re-established with
// capped exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns the policy used when nothing is configured:
// 5 attempts, 2s initial delay, 2x multiplier, 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 2 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// NextDelay returns the backoff delay before attempt n (1-indexed):
// InitialDelay * Multiplier^(n-1), capped at MaxDelay.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}
