package collector

import (
	"context"
	"time"

	apperrors "github.com/driftscope/driftscope/internal/errors"
	"github.com/driftscope/driftscope/internal/logger"
	"github.com/driftscope/driftscope/pkg/types"
)

// RetryPolicy bounds how fetch failures are retried. The delay doubles per
// attempt from BaseDelay up to MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy mirrors the collection retry behavior of the original
// service: three attempts, exponential wait between 4 and 10 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   4 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Retrying wraps a collector with bounded exponential-backoff retries of
// transient failures. Non-retryable errors surface immediately.
type Retrying struct {
	inner  Collector
	policy RetryPolicy
	log    logger.Logger
}

// WithRetry wraps the collector with the given retry policy.
func WithRetry(inner Collector, policy RetryPolicy, log logger.Logger) *Retrying {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Retrying{inner: inner, policy: policy, log: log}
}

func (r *Retrying) Name() string {
	return r.inner.Name()
}

// Fetch attempts the wrapped fetch until it succeeds, a non-retryable error
// occurs, the attempt budget is exhausted, or the context is cancelled.
func (r *Retrying) Fetch(ctx context.Context, scope types.Scope) (*types.Configuration, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		config, err := r.inner.Fetch(ctx, scope)
		if err == nil {
			return config, nil
		}
		if !apperrors.IsRetryable(err) {
			return nil, err
		}
		lastErr = err

		if attempt == r.policy.MaxAttempts {
			break
		}
		delay := r.backoff(attempt)
		r.log.WithFields(map[string]interface{}{
			"scope":   scope.Key(),
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("collector fetch failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, apperrors.Wrap(apperrors.KindCollectorUnavailable,
		"collector retries exhausted", lastErr)
}

func (r *Retrying) backoff(attempt int) time.Duration {
	delay := r.policy.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if r.policy.MaxDelay > 0 && delay >= r.policy.MaxDelay {
			return r.policy.MaxDelay
		}
	}
	if r.policy.MaxDelay > 0 && delay > r.policy.MaxDelay {
		delay = r.policy.MaxDelay
	}
	return delay
}
