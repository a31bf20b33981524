package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

const maxBackoff = 5 * time.Second

// Retry runs fn up to attempts times with exponential backoff and full jitter.
// retryable decides whether an error is worth another attempt; nil retries every error.
func Retry[T any](ctx context.Context, attempts int, delay time.Duration, retryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		attempts = 1
	}
	cur := delay
	var lastErr error
	for i := range attempts {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if i == attempts-1 || (retryable != nil && !retryable(err)) {
			break
		}
		if cur > maxBackoff {
			cur = maxBackoff
		}
		sleep := time.Duration(rand.Int64N(int64(cur) + 1))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
		cur *= 2
	}
	return zero, lastErr
}
