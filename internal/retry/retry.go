// Package retry executes operations against upstream services with a bounded
// retry budget and exponential backoff. Retryability is decided by the error
// taxonomy: an attempt's failure is classified and only transient kinds
// (timeouts, unreachable or failing upstreams) are retried. The caller never
// observes intermediate failures, only the final result or an exhausted,
// classified record.
package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	retrygo "github.com/avast/retry-go/v5"

	"github.com/yourorg/ops-backend/internal/apperr"
)

// Config bounds one engine invocation.
//
// MaxAttempts is the total number of attempts including the first one; values
// below 1 are treated as a single attempt. Whether an adapter gets the full
// budget or a single attempt is that adapter's configuration decision
// (mutating calls default to one attempt), never a rule baked in here.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig is the budget read-only adapters inherit.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 1 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// Do runs op under cfg. On terminal failure it returns the classified
// *apperr.Record for the last error, with Details["retryCount"] set to the
// number of attempts actually made.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()

	var attempts int
	value, err := retrygo.NewWithData[T](
		retrygo.Context(ctx),
		retrygo.Attempts(uintAttempts(cfg.MaxAttempts)),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(func(err error) bool {
			return apperr.Classify(err).Retryable
		}),
		retrygo.DelayType(func(n uint, _ error, _ retrygo.DelayContext) time.Duration {
			// retry-go passes n starting at 1 for the first wait; the
			// backoff exponent is the 0-based index of the attempt that
			// just failed.
			return backoffDelay(cfg, int(n)-1)
		}),
		retrygo.OnRetry(func(n uint, err error) {
			slog.Debug("retrying operation",
				"attempt", n+1,
				"maxAttempts", cfg.MaxAttempts,
				"error", err.Error())
		}),
	).Do(func() (T, error) {
		attempts++
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, apperr.Classify(err).WithDetail("retryCount", attempts)
	}
	return value, nil
}

// backoffDelay computes min(base * 2^attempt + jitter, max) where jitter is a
// uniform random value up to 10% of the exponential term.
func backoffDelay(cfg Config, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	exp := cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		exp *= 2
		if exp >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}

	jitterCeil := exp / 10
	var jitter time.Duration
	if jitterCeil > 0 {
		jitter = time.Duration(rand.Int63n(int64(jitterCeil) + 1))
	}

	delay := exp + jitter
	if delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}

func uintAttempts(n int) uint {
	if n < 1 {
		return 1
	}
	return uint(n)
}
