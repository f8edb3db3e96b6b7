package coordstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig controls retrying of transient connection failures.
// MaxElapsedTime = 0 means retry until the context ends.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  0, // never stop
	}
}

func (c RetryConfig) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = 0.2
	b.InitialInterval = c.InitialInterval
	b.Multiplier = 2
	b.MaxInterval = c.MaxInterval
	b.MaxElapsedTime = c.MaxElapsedTime
	b.Reset()
	return b
}

// retryTransient invokes the operation, transient failures are retried with
// an exponential backoff, any other error is returned as-is.
func (s *Store) retryTransient(ctx context.Context, opName string, fn func(ctx context.Context) error) error {
	b := backoff.WithContext(s.retry.newBackoff(), ctx)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			s.logger.Warnf(ctx, `retrying etcd operation "%s", attempt %d: %s`, opName, attempt, err)
			return err
		}
		return backoff.Permanent(err)
	}, b)
}
