// Package retry is the single retry policy shared by store writes and
// outbound notifications.
package retry

import (
	"context"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts counts the first call; values below 1 mean one attempt.
	MaxAttempts int
	// Backoff returns the wait before attempt n+1, given the failed attempt n (1-based).
	Backoff func(attempt int) time.Duration
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(err error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Constant waits d between attempts.
func Constant(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// Exponential doubles base after every failed attempt, capped at limit.
func Exponential(base, limit time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if limit > 0 && d >= limit {
				return limit
			}
		}
		return d
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts the
// attempts, or ctx is done. The last error from fn is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= attempts || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}
		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if wait <= 0 {
			if ctx.Err() != nil {
				return err
			}
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
