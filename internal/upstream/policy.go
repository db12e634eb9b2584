package upstream

import (
	"math/rand"
	"time"
)

// RetryPolicy is an explicit backoff policy composed with each upstream
// call. Attempt numbering starts at 1; Backoff is consulted before every
// retry (never before the first attempt).
type RetryPolicy struct {
	Base     time.Duration
	Cap      time.Duration
	Attempts int
}

// DefaultRetryPolicy mirrors the upstream contract: exponential backoff
// from 0.3s capped at 3s, three attempts total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:     300 * time.Millisecond,
		Cap:      3 * time.Second,
		Attempts: 3,
	}
}

// Backoff returns the sleep before the given retry attempt with up to 10%
// jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.Base * time.Duration(1<<uint(attempt-1))
	if backoff > p.Cap {
		backoff = p.Cap
	}
	jitter := time.Duration(rand.Float64() * 0.1 * float64(backoff))
	return backoff + jitter
}
