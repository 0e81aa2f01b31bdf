package queue

import "time"

// Default retry parameters. MaxRetries can be overridden per job at creation.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 300 * time.Second
	DefaultMaxDelay   = 3600 * time.Second
)

// RetryPolicy computes the backoff delay between automatic retry attempts.
// It is a pure value type with no side effects.
type RetryPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy returns the standard policy: 300s base delay doubling
// per attempt, capped at one hour.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay: DefaultBaseDelay,
		MaxDelay:  DefaultMaxDelay,
	}
}

// Backoff returns min(BaseDelay * 2^retryCount, MaxDelay).
func (p RetryPolicy) Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}

	delay := p.BaseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Exhausted reports whether the retry budget is used up.
func (p RetryPolicy) Exhausted(retryCount, maxRetries int) bool {
	return retryCount >= maxRetries
}
