package dbaccess

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryAttempt describes a failed attempt that will be retried.
type RetryAttempt struct {
	// Number is the 1-based attempt that failed.
	Number int

	// Err is the error that attempt returned.
	Err error

	// NextDelay is how long the policy waits before the next attempt.
	NextDelay time.Duration
}

// RetryPolicy re-runs a failing operation up to MaxAttempts times with a
// fixed Delay between attempts.
//
// Every error is retried except ErrValidation and ErrNoRows, which describe
// the request rather than the store. The zero value runs the operation once.
type RetryPolicy struct {
	// MaxAttempts bounds the number of calls. Values below 1 mean 1.
	MaxAttempts int

	// Delay is the fixed wait between attempts. Negative values mean 0.
	Delay time.Duration

	// OnRetry, if set, is called after each failed attempt that will be retried.
	OnRetry func(RetryAttempt)

	// newTimer supplies the wait timer for one Retry call; tests replace it.
	newTimer func() backoff.Timer
}

// Run calls op until it succeeds or the attempts are exhausted, returning
// the last error. If ctx is cancelled while waiting, the last error is
// returned joined with the context error.
func (p RetryPolicy) Run(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Retry is Run for operations that produce a value.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		result  T
		attempt int
		lastErr error
	)

	operation := func() error {
		attempt++
		v, err := op(ctx)
		if err == nil {
			result = v
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = func(err error, next time.Duration) {
			p.OnRetry(RetryAttempt{Number: attempt, Err: err, NextDelay: next})
		}
	}

	var timer backoff.Timer
	if p.newTimer != nil {
		timer = p.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(operation, p.backOff(ctx), notify, timer)
	if err == nil {
		return result, nil
	}

	var zero T
	if ctxErr := ctx.Err(); ctxErr != nil && lastErr != nil && !errors.Is(lastErr, ctxErr) {
		return zero, errors.Join(lastErr, ctxErr)
	}
	return zero, err
}

// backOff is a constant delay, stopped after MaxAttempts calls or when ctx
// is done.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	retries := uint64(max(p.MaxAttempts, 1) - 1)
	constant := backoff.NewConstantBackOff(max(p.Delay, 0))
	return backoff.WithContext(backoff.WithMaxRetries(constant, retries), ctx)
}

// retryable reports whether another attempt could change the outcome.
func retryable(err error) bool {
	return !errors.Is(err, ErrValidation) && !errors.Is(err, ErrNoRows)
}
