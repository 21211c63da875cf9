package fetcher

import "time"

// LinearRetryPolicy retries transient failures with a linearly growing,
// capped delay.
type LinearRetryPolicy struct {
	maxAttempts int
	step        time.Duration
	maxDelay    time.Duration
}

// NewLinearRetryPolicy builds a policy. maxAttempts <= 0 retries until the
// context is canceled, which can hang on a permanently unreachable host.
func NewLinearRetryPolicy(maxAttempts int, step, maxDelay time.Duration) *LinearRetryPolicy {
	if step <= 0 {
		step = 500 * time.Millisecond
	}
	if maxDelay < step {
		maxDelay = step
	}
	return &LinearRetryPolicy{
		maxAttempts: maxAttempts,
		step:        step,
		maxDelay:    maxDelay,
	}
}

// ShouldRetry decides whether the error is retryable after attempt attempts.
func (p *LinearRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if !IsTransient(err) {
		return false
	}
	return p.maxAttempts <= 0 || attempt < p.maxAttempts
}

// Backoff returns min(attempt*step, maxDelay).
func (p *LinearRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(attempt) * p.step
	if delay > p.maxDelay || delay <= 0 {
		return p.maxDelay
	}
	return delay
}
