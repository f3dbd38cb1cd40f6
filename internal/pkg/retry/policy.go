// Package retry provides a bounded retry policy shared by the upstream fetchers.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Exhaustion decides what a caller does once a policy has run out of attempts.
type Exhaustion int

const (
	// ReturnPartial tells the caller to log the failure and carry on with what it has.
	ReturnPartial Exhaustion = iota
	// Propagate tells the caller to return the failure.
	Propagate
)

func (e Exhaustion) String() string {
	if e == Propagate {
		return "propagate"
	}
	return "returnPartial"
}

// Policy is a bounded retry configuration for one external dependency.
type Policy struct {
	MaxAttempts  int
	Backoff      time.Duration // wait between attempts
	Cooldown     time.Duration // wait after the last failed attempt
	OnExhaustion Exhaustion
}

// Do runs op until it succeeds, returns a backoff.Permanent error, or the attempts run out.
// The final error is returned unchanged; whether to propagate it is the caller's call via Propagates.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Backoff)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	err := backoff.Retry(func() error { return op(ctx) }, b)
	if err == nil {
		return nil
	}
	_ = Sleep(ctx, p.Cooldown)
	return err
}

// Propagates reports whether exhausted failures should be returned to the caller.
func (p Policy) Propagates() bool {
	return p.OnExhaustion == Propagate
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
