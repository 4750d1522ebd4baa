package util

import (
	"context"
	"time"
)

// RetryPolicy is an injectable description of how a caller re-attempts an
// operation: how many extra attempts beyond the first, and the backoff shape
// between them. A zero Backoff means attempts run back to back, which is the
// right setting when the operation already paces itself internally.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration // doubles after every retry; 0 disables sleeping
}

// Wait sleeps the backoff due before retry number attempt (1-based). It
// returns early with the context error if the context is cancelled.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	if p.Backoff <= 0 || attempt < 1 {
		return nil
	}
	delay := p.Backoff << (attempt - 1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// Do calls fn up to 1+MaxRetries times, sleeping per the policy between
// attempts. It returns nil on the first successful call, or the last error
// if every attempt fails.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if werr := p.Wait(ctx, attempt); werr != nil {
				return werr
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
