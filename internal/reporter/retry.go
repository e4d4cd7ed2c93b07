package reporter

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"pomodoro/focus/internal/ledgerclient"
	"pomodoro/focus/internal/model"
)

// RetryPolicy bounds the retries performed by Retrying.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy tries up to 5 times, backing off from 1s to 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// Retrying repeats a Reporter with capped exponential backoff. Records carry
// stable ids and the ledger ignores repeats, so a retried post cannot double count.
type Retrying struct {
	next   Reporter
	policy RetryPolicy
	notify func(error, time.Duration)
}

func NewRetrying(next Reporter, policy RetryPolicy) *Retrying {
	if policy.MaxTries == 0 {
		policy.MaxTries = 1
	}
	return &Retrying{next: next, policy: policy}
}

// OnRetry registers fn to be called before each wait.
func (r *Retrying) OnRetry(fn func(err error, wait time.Duration)) *Retrying {
	r.notify = fn
	return r
}

func (r *Retrying) Report(ctx context.Context, record model.SessionRecord) (*model.StatsSnapshot, error) {
	policy := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		policy.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		policy.MaxInterval = r.policy.MaxInterval
	}

	operation := func() (*model.StatsSnapshot, error) {
		stats, err := r.next.Report(ctx, record)
		if err != nil && !ledgerclient.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return stats, err
	}

	options := []backoff.RetryOption{
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(r.policy.MaxTries),
	}
	if r.notify != nil {
		options = append(options, backoff.WithNotify(r.notify))
	}
	return backoff.Retry(ctx, operation, options...)
}
