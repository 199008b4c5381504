package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/dittovault/internal/logger"
)

// RetryPolicy bounds the exponential backoff applied to backend calls.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first (default: 3)
	Attempts int `mapstructure:"attempts" validate:"gte=0,lte=10"`

	// BaseDelay is the wait before the second try; each further wait doubles
	// (default: 500ms)
	BaseDelay time.Duration `mapstructure:"base_delay"`

	// MaxDelay caps a single wait (default: 5s)
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	return p
}

// backOff builds the exponential schedule for one call: BaseDelay doubling
// up to MaxDelay with 20% jitter, stopped after Attempts tries or when ctx
// is done.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx)
}

// RetryingStore wraps a ContentStore with bounded exponential backoff.
//
// Not-found answers and context cancellation are returned immediately.
// Every other failure is retried; once attempts are exhausted the last
// error is returned wrapped in ErrUnavailable.
type RetryingStore struct {
	inner  ContentStore
	policy RetryPolicy
}

// NewRetryingStore wraps inner with policy. Zero policy fields take their
// defaults.
func NewRetryingStore(inner ContentStore, policy RetryPolicy) *RetryingStore {
	return &RetryingStore{inner: inner, policy: policy.withDefaults()}
}

// Unwrap returns the wrapped store.
func (s *RetryingStore) Unwrap() ContentStore {
	return s.inner
}

func (s *RetryingStore) Put(ctx context.Context, key string, data []byte) error {
	return s.do(ctx, "put", key, func() error {
		return s.inner.Put(ctx, key, data)
	})
}

func (s *RetryingStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.do(ctx, "get", key, func() error {
		var err error
		data, err = s.inner.Get(ctx, key)
		return err
	})
	return data, err
}

func (s *RetryingStore) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.do(ctx, "exists", key, func() error {
		var err error
		ok, err = s.inner.Exists(ctx, key)
		return err
	})
	return ok, err
}

func (s *RetryingStore) Delete(ctx context.Context, key string) error {
	return s.do(ctx, "delete", key, func() error {
		return s.inner.Delete(ctx, key)
	})
}

func (s *RetryingStore) Healthcheck(ctx context.Context) error {
	return s.inner.Healthcheck(ctx)
}

func (s *RetryingStore) Close() error {
	return s.inner.Close()
}

func (s *RetryingStore) do(ctx context.Context, op, key string, fn func() error) error {
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		if err := fn(); err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}, s.policy.backOff(ctx), func(err error, wait time.Duration) {
		logger.Debug("Content %s %s failed (attempt %d/%d), retrying in %s: %v",
			op, key, attempt, s.policy.Attempts, wait, err)
	})
	if err == nil || !retryable(err) {
		return err
	}

	logger.Warn("Content %s %s failed after %d attempts: %v", op, key, attempt, err)
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, op, key, err)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrContentNotFound),
		errors.Is(err, ErrCorrupted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
