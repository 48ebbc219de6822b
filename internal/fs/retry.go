package fs

import (
	"context"
	"fmt"
	"time"
)

// implements retry logic with exponential backoff.
// Used by reads of live saves, renames and removals to ride out transient locks.

// Policy bounds a retry loop.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func (p Policy) normalize() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Delay returns the backoff before the attempt following attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalize()
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Retry runs fn until it succeeds, fails permanently, or attempts run out.
func Retry(ctx context.Context, p Policy, opName string, fn func() error) error {
	return RetryIf(ctx, p, opName, IsTransient, fn)
}

// RetryIf is Retry with a caller supplied transient classifier.
func RetryIf(ctx context.Context, p Policy, opName string, transient func(error) bool, fn func() error) error {
	p = p.normalize()

	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !transient(err) {
			return fmt.Errorf("%s failed permanently: %w: %w", opName, ErrPermanent, err)
		}

		if attempt == p.Attempts {
			break
		}

		t := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w: %w", opName, p.Attempts, ErrTransient, lastErr)
}
