package retry_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/claudekit/pkg/retry"
)

type testError struct {
	retryable bool
	hint      time.Duration
}

func (e *testError) Error() string     { return "test error" }
func (e *testError) IsRetryable() bool { return e.retryable }

func (e *testError) RetryHint() (time.Duration, bool) {
	return e.hint, e.hint > 0
}

func fastConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

var _ = Describe("Config", func() {
	It("has the documented defaults", func() {
		cfg := retry.DefaultConfig()
		Expect(cfg.MaxAttempts).To(Equal(3))
		Expect(cfg.InitialBackoff).To(Equal(500 * time.Millisecond))
		Expect(cfg.MaxBackoff).To(Equal(60 * time.Second))
		Expect(cfg.Multiplier).To(Equal(2.0))
		Expect(cfg.RespectRetryAfter).To(BeTrue())
	})

	It("grows the backoff exponentially", func() {
		cfg := retry.Config{InitialBackoff: time.Second, MaxBackoff: time.Minute, Multiplier: 2}
		Expect(cfg.Backoff(0)).To(Equal(time.Second))
		Expect(cfg.Backoff(1)).To(Equal(2 * time.Second))
		Expect(cfg.Backoff(2)).To(Equal(4 * time.Second))
	})

	It("caps the backoff", func() {
		cfg := retry.Config{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 10}
		Expect(cfg.Backoff(10)).To(Equal(5 * time.Second))
	})
})

var _ = Describe("IsRetryable", func() {
	It("follows wrapped errors", func() {
		err := fmt.Errorf("sending: %w", &testError{retryable: true})
		Expect(retry.IsRetryable(err)).To(BeTrue())
	})

	It("rejects plain and cancellation errors", func() {
		Expect(retry.IsRetryable(errors.New("plain"))).To(BeFalse())
		Expect(retry.IsRetryable(context.Canceled)).To(BeFalse())
		Expect(retry.IsRetryable(nil)).To(BeFalse())
	})
})

var _ = Describe("Do", func() {
	It("returns the first success", func() {
		calls := 0
		v, err := retry.Do(context.Background(), fastConfig(), func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("ok"))
		Expect(calls).To(Equal(1))
	})

	It("retries retryable failures", func() {
		calls := 0
		v, err := retry.Do(context.Background(), fastConfig(), func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, &testError{retryable: true}
			}
			return calls, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(3))
	})

	It("does not retry other failures", func() {
		calls := 0
		_, err := retry.Do(context.Background(), fastConfig(), func(context.Context) (int, error) {
			calls++
			return 0, &testError{retryable: false}
		})
		Expect(err).To(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("gives up after MaxAttempts", func() {
		cfg := fastConfig()
		cfg.MaxAttempts = 2

		calls := 0
		want := &testError{retryable: true}
		_, err := retry.Do(context.Background(), cfg, func(context.Context) (int, error) {
			calls++
			return 0, want
		})
		Expect(err).To(BeIdenticalTo(want))
		Expect(calls).To(Equal(2))
	})

	It("waits for the server hint", func() {
		cfg := fastConfig()
		cfg.MaxBackoff = time.Second

		var waits []time.Duration
		cfg.OnRetry = func(_ int, wait time.Duration, _ error) {
			waits = append(waits, wait)
		}

		calls := 0
		_, err := retry.Do(context.Background(), cfg, func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, &testError{retryable: true, hint: 20 * time.Millisecond}
			}
			return 0, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(waits).To(Equal([]time.Duration{20 * time.Millisecond}))
	})

	It("ignores the hint when told to", func() {
		cfg := fastConfig()
		cfg.RespectRetryAfter = false

		var waits []time.Duration
		cfg.OnRetry = func(_ int, wait time.Duration, _ error) {
			waits = append(waits, wait)
		}

		_, _ = retry.Do(context.Background(), cfg, func(context.Context) (int, error) {
			return 0, &testError{retryable: true, hint: time.Hour}
		})
		Expect(waits).To(Equal([]time.Duration{time.Millisecond, 2 * time.Millisecond}))
	})

	It("stops waiting when the context ends", func() {
		cfg := fastConfig()
		cfg.InitialBackoff = time.Hour
		cfg.MaxBackoff = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		cfg.OnRetry = func(int, time.Duration, error) { cancel() }

		_, err := retry.Do(ctx, cfg, func(context.Context) (int, error) {
			return 0, &testError{retryable: true}
		})
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})

var _ = Describe("Poll", func() {
	It("checks until the condition holds", func() {
		calls := 0
		v, err := retry.Poll(context.Background(), retry.Config{InitialBackoff: time.Millisecond, Multiplier: 1},
			func(context.Context) (int, bool, error) {
				calls++
				return calls, calls == 4, nil
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(4))
	})

	It("stops at the first error without retrying it", func() {
		calls := 0
		boom := &testError{retryable: true}
		_, err := retry.Poll(context.Background(), fastConfig(), func(context.Context) (int, bool, error) {
			calls++
			return 0, false, boom
		})
		Expect(err).To(BeIdenticalTo(boom))
		Expect(calls).To(Equal(1))
	})

	It("gives up after MaxAttempts checks with the last value", func() {
		cfg := fastConfig()
		cfg.MaxAttempts = 2
		calls := 0
		v, err := retry.Poll(context.Background(), cfg, func(context.Context) (string, bool, error) {
			calls++
			return fmt.Sprintf("check %d", calls), false, nil
		})
		Expect(err).To(MatchError(retry.ErrPollExhausted))
		Expect(v).To(Equal("check 2"))
		Expect(calls).To(Equal(2))
	})

	It("stops waiting when the context ends", func() {
		cfg := retry.Config{InitialBackoff: time.Hour}
		ctx, cancel := context.WithCancel(context.Background())

		_, err := retry.Poll(ctx, cfg, func(context.Context) (int, bool, error) {
			cancel()
			return 7, false, nil
		})
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})
