// Package retry runs outbound calls with a bounded number of attempts, a
// per-attempt timeout and exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Policy bounds a retried call. Zero values mean: one attempt, no timeout,
// no backoff, no rate limit.
type Policy struct {
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
	// Limiter, when set, is waited on before every attempt.
	Limiter *rate.Limiter
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so Do stops retrying and returns it unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a permanent error, the parent
// context ends, or the attempts are used up. The last error is returned with
// any Permanent marker removed.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if p.Limiter != nil {
			if werr := p.Limiter.Wait(ctx); werr != nil {
				return werr
			}
		}

		err = call(ctx, p.Timeout, fn)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}

		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
			backoff *= 2
		}
	}
	return err
}

func call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
