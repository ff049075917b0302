package dispatch

import (
	"context"
	"math/rand"
	"time"
)

type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	// timeout bounds each attempt.
	timeout time.Duration
}

// retryOp runs fn until it succeeds, the retries are exhausted or ctx is
// done. It returns the number of attempts made.
func retryOp(ctx context.Context, p retryPolicy, fn func(context.Context) error) (int, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		attempts++
		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.timeout)
		}
		lastErr = fn(actx)
		cancel()
		if lastErr == nil {
			return attempts, nil
		}
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return attempts, lastErr
		case <-time.After(backoffDelay(p, attempt)):
		}
	}
	return attempts, lastErr
}

// backoffDelay is baseDelay*2^attempt capped at maxDelay, plus a jitter in
// [0, baseDelay).
func backoffDelay(p retryPolicy, attempt int) time.Duration {
	delay := p.baseDelay << uint(attempt)
	if delay > p.maxDelay || delay <= 0 {
		delay = p.maxDelay
	}
	if p.baseDelay <= 0 {
		return delay
	}
	return delay + time.Duration(rand.Int63n(int64(p.baseDelay)))
}
