package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy is a bounded retry loop with capped exponential backoff and jitter.
// The delay before attempt n+1 is Base<<(n-1) capped at Max, plus up to 10%
// random jitter. Retryable decides whether an error deserves another attempt;
// a nil Retryable retries everything. DelayFor, when set, can override the
// computed delay for a specific error (return 0 to keep the default).
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
	Retryable   func(error) bool
	DelayFor    func(err error, attempt int) time.Duration
}

// Do runs fn until it succeeds, returns a non-retryable error, the context is
// cancelled, or MaxAttempts is exhausted.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay(err, attempt)):
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

func (p Policy) delay(err error, attempt int) time.Duration {
	if p.DelayFor != nil {
		if d := p.DelayFor(err, attempt); d > 0 {
			return d
		}
	}

	d := p.Base << uint(attempt-1)
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	if d <= 0 {
		return 0
	}

	return d + time.Duration(rand.Int63n(int64(d)/10+1))
}
