// Package retry runs operations against flaky collaborators with
// classified, backed-off reattempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Action is the caller's verdict on a failed attempt.
type Action int

const (
	Stop  Action = iota // permanent, abort immediately
	Retry               // transient, normal backoff
	After               // rate-limited, longer backoff
)

// Policy bounds the reattempts for one logical operation.
type Policy struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	RateLimitBackoff time.Duration
	OnRetry          func(attempt int, err error, backoff time.Duration)
}

// Classify inspects an attempt's error and decides what to do next.
type Classify func(err error) Action

// Do runs op until it succeeds, is classified permanent, or the policy's
// attempts are exhausted. Backoff doubles between attempts; a rate-limit
// verdict switches to the policy's longer rate-limit backoff first.
func Do[T any](ctx context.Context, p Policy, classify Classify, op func() (T, error)) (T, error) {
	var zero T
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}

		action := classify(err)
		if action == Stop {
			return zero, &PermanentError{Err: err}
		}
		if attempt >= p.MaxAttempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		if action == After && p.RateLimitBackoff > 0 {
			backoff = p.RateLimitBackoff
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// DoVoid is Do for operations without a result.
func DoVoid(ctx context.Context, p Policy, classify Classify, op func() error) error {
	_, err := Do(ctx, p, classify, func() (struct{}, error) { return struct{}{}, op() })
	return err
}

// PermanentError marks an error the classifier refused to retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
