package duo

import (
	"context"
	"log"
	"math/rand"
	"time"
)

// RetryPolicy retries an operation on transient failures with exponential
// backoff. Attempt counting is zero-based: attempt index MaxRetries is the
// last one and does not sleep before giving up.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool

	sleep func(time.Duration) // test seam
}

func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 3
	}
	return RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2,
		Jitter:     true,
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, the
// context is cancelled, or retries are exhausted. The last error seen is
// returned on exhaustion.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err

		if attempt == p.MaxRetries {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		delay := p.delayFor(attempt)
		log.Printf("Attempt %d/%d failed: %v. Retrying in %.2fs...",
			attempt+1, p.MaxRetries+1, err, delay.Seconds())
		sleep(delay)
	}
	return lastErr
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	delay := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.Multiplier
	}
	if max := float64(p.MaxDelay); delay > max {
		delay = max
	}
	if p.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}
