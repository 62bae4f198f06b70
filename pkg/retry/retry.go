// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Config controls how often and how long Do waits between attempts.
type Config struct {
	// MaxAttempts is the total number of calls, including the first one.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// RespectRetryAfter makes a server supplied hint replace the computed
	// backoff. The hint is still capped at MaxBackoff.
	RespectRetryAfter bool

	// OnRetry is called before every wait, after a retryable failure.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultConfig returns 3 attempts starting at 500ms, doubling up to 60s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        60 * time.Second,
		Multiplier:        2.0,
		RespectRetryAfter: true,
	}
}

// Retryable is implemented by errors that know whether the operation that
// produced them may be repeated.
type Retryable interface {
	IsRetryable() bool
}

// Hinted is implemented by errors that carry a server requested delay.
type Hinted interface {
	RetryHint() (time.Duration, bool)
}

// IsRetryable reports whether err, or any error it wraps, is Retryable and
// says so. Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r Retryable
	return errors.As(err, &r) && r.IsRetryable()
}

// Backoff returns the wait before retry number attempt, counting from 0.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	wait := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt))
	if c.MaxBackoff > 0 && wait > float64(c.MaxBackoff) {
		return c.MaxBackoff
	}
	return time.Duration(wait)
}

// wait picks the delay after a failure of attempt, honoring hints.
func (c Config) wait(attempt int, err error) time.Duration {
	if c.RespectRetryAfter {
		var h Hinted
		if errors.As(err, &h) {
			if d, ok := h.RetryHint(); ok {
				if c.MaxBackoff > 0 && d > c.MaxBackoff {
					return c.MaxBackoff
				}
				return d
			}
		}
	}
	return c.Backoff(attempt)
}

// Do calls fn until it succeeds, fails with an error that is not retryable,
// or MaxAttempts calls were made. The last error is returned unchanged.
// Waiting between attempts stops early when ctx is done.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(cfg.MaxAttempts, 1)

	var (
		zero T
		err  error
	)
	for attempt := range attempts {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) || attempt == attempts-1 {
			return zero, err
		}

		wait := cfg.wait(attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return zero, err
}

// ErrPollExhausted is returned by Poll when MaxAttempts checks ran without
// the condition being met.
var ErrPollExhausted = errors.New("condition not met before attempts ran out")

// Poll calls check until it reports done, fails, or ctx is done. The waits
// between checks follow cfg.Backoff. Unlike Do, a MaxAttempts of zero polls
// without limit, and errors from check end polling at once: check is
// expected to retry its own transient failures.
//
// On exhaustion or cancellation the last checked value is returned with
// the error.
func Poll[T any](ctx context.Context, cfg Config, check func(context.Context) (T, bool, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		v, done, err := check(ctx)
		if err != nil || done {
			return v, err
		}
		if cfg.MaxAttempts > 0 && attempt == cfg.MaxAttempts-1 {
			return v, ErrPollExhausted
		}

		timer := time.NewTimer(cfg.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, ctx.Err()
		case <-timer.C:
		}
	}
}
