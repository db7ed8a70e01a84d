package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Retry bounds how a notifier repeats a failed delivery.
type Retry struct {
	// Retries is the number of attempts after the first.
	Retries int
	// Backoff is the wait before the first retry; it doubles per retry.
	Backoff time.Duration
}

// Validate rejects negative retry counts.
func (r Retry) Validate() error {
	if r.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", r.Retries)
	}
	return nil
}

// WithDefaultBackoff returns r with backoff set when it is unset.
func (r Retry) WithDefaultBackoff(backoff time.Duration) Retry {
	if r.Backoff <= 0 {
		r.Backoff = backoff
	}
	return r
}

// permanentError stops Do without further attempts.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return &permanentError{err: err}
}

// Do calls deliver until it succeeds, returns a Permanent error, or the
// retries run out. Cancelling ctx stops the backoff wait.
func (r Retry) Do(ctx context.Context, deliver func(context.Context) error) error {
	attempts := 1 + r.Retries
	var err error
	for i := range attempts {
		if i > 0 {
			if werr := wait(ctx, r.Backoff<<(i-1)); werr != nil {
				return fmt.Errorf("cancelled after %d attempts: %w", i, werr)
			}
		}
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("cancelled: %w", cerr)
		}

		err = deliver(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
