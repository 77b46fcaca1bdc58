package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// maxBackoff caps the delay between attempts of one model call.
const maxBackoff = 30 * time.Second

// RetryPolicy is the retry schedule for one model call.
type RetryPolicy struct {
	// Attempts is the total number of tries, the first included.
	Attempts int
	// Base is the delay before the first retry; each later one doubles it.
	Base time.Duration
	// OnRetry runs before each retry sleep with the 1-based retry number.
	OnRetry func(attempt int, err error)
}

// ForCall builds the policy for a call allowed retries extra attempts after
// the first, waiting base × 2^n between them.
func ForCall(retries int, base time.Duration, onRetry func(int, error)) RetryPolicy {
	if base <= 0 {
		base = time.Second
	}
	return RetryPolicy{Attempts: max(retries, 0) + 1, Base: base, OnRetry: onRetry}
}

// Backoff returns the delay before retry n (0-based).
func (p RetryPolicy) Backoff(n int) time.Duration {
	d := p.Base
	for range n {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return min(d, maxBackoff)
}

// DoVal runs fn until it succeeds, fails with an error that is not
// transient, or runs out of attempts. Permanent rejections and an open
// circuit return at once so the caller can move to the next tier. The
// last error is returned unchanged.
func DoVal[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(p.Attempts, 1)

	var err error
	for n := range attempts {
		var val T
		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || !IsTransient(err) || n == attempts-1 {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(n+1, err)
		}
		timer := time.NewTimer(p.Backoff(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
	return zero, err
}

// LogRetries returns an OnRetry hook that logs each retry of one
// extraction's call on tier.
func LogRetries(extractionID, tier string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Debug("resilience: retrying model call",
			zap.String("extraction_id", extractionID),
			zap.String("tier", tier),
			zap.Int("attempt", attempt),
			zap.String("kind", string(Classify(err))),
			zap.Error(err),
		)
	}
}
