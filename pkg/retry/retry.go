package retry

import (
	"context"
	"time"
)

// Policy is an exponential backoff schedule expressed as data, shared by
// every external call site (model query, synthesis, market-data fetch).
// Transient and permanent failures are retried the same way; classification
// happens at the caller, not here.
type Policy struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // delay before the first retry
	Multiplier float64       // growth factor per retry
	MaxDelay   time.Duration // cap; 0 means uncapped
}

// Default mirrors the provider-call schedule: 1s base, doubling, 3 retries.
func Default() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Second, Multiplier: 2, MaxDelay: 30 * time.Second}
}

// Attempts returns the total number of calls the policy allows.
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Delay returns the pause before retry n (1-based). Zero for n < 1.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := p.BaseDelay
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * mult)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs fn under the policy, sleeping between attempts. It returns nil on
// the first success, the last error once attempts are exhausted, or the
// context error if cancelled while waiting.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= p.Attempts(); attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == p.Attempts() {
			break
		}
		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
