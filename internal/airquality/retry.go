package airquality

import (
	"context"
	"math"
	"time"
)

// BackoffConfig controls exponential backoff between acquisition attempts.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// withRetry runs fn until it succeeds, returns a non-transient error, or the
// retry budget is spent. A zero config means a single attempt.
func withRetry[T any](ctx context.Context, cfg BackoffConfig, fn func(context.Context) (T, error)) (T, error) {
	var attempt int
	for {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= cfg.MaxRetries || !KindOf(err).Transient() {
			return v, err
		}

		delay := cfg.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay <= 0 {
			delay = 500 * time.Millisecond
		}
		if delay > cfg.MaxInterval && cfg.MaxInterval > 0 {
			delay = cfg.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, Classify(ctx.Err(), "retry", KindTimeout)
		case <-timer.C:
		}
		attempt++
	}
}
