// Package retry wraps remote operations with a bounded, fixed-delay retry
// for errors explicitly marked retryable.
package retry

import (
	"context"
	"time"

	"talktome/internal/errs"
	"talktome/internal/metrics"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

const (
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries = 3
	// Delay is the fixed wait between attempts.
	Delay = time.Second
)

// Policy configures retries for one class of remote operation.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultPolicy returns the policy used for every remote read and write.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: MaxRetries, Delay: Delay}
}

// Run calls fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. The last error is returned unchanged.
func (p Policy) Run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do is Run for operations that produce a value.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		res, err := fn(ctx)
		if err != nil && !errs.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(p.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.RetriesTotal.WithLabelValues(op).Inc()
			log.Warn().
				Err(err).
				Str("operation", op).
				Int("attempt", attempt).
				Dur("next", next).
				Msg("retry: transient failure, retrying")
		}),
	)
	if err != nil {
		return res, unwrapPermanent(err)
	}
	return res, nil
}

// unwrapPermanent strips the back-off library's marker so callers see the
// error their operation returned.
func unwrapPermanent(err error) error {
	if p, ok := err.(*backoff.PermanentError); ok {
		return p.Unwrap()
	}
	return err
}
