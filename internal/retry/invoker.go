// Package retry wraps flaky engine calls in an exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"

	"speaker-transcriber/internal/domain"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
)

// Policy bounds how many times a call is attempted and how long to wait between tries.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// ExhaustedError is returned when every attempt failed with a transient error.
type ExhaustedError struct {
	Target   string
	Attempts int
	Last     error
}

// Error names the target and attempt count.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retries (%d) reached for %s: %v", e.Attempts, e.Target, e.Last)
}

// Unwrap exposes both the exhaustion class and the final cause.
func (e *ExhaustedError) Unwrap() []error {
	return []error{domain.ErrRetriesExhausted, e.Last}
}

// Invoker applies a Policy to arbitrary calls.
type Invoker struct {
	policy      Policy
	sleep       func(ctx context.Context, d time.Duration) error
	isTransient func(error) bool
	logger      *log.Logger
}

// Option customizes an Invoker.
type Option func(*Invoker)

// WithSleep replaces the wait function, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(inv *Invoker) { inv.sleep = sleep }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *log.Logger) Option {
	return func(inv *Invoker) { inv.logger = logger }
}

// WithTransient overrides which errors are retried.
func WithTransient(fn func(error) bool) Option {
	return func(inv *Invoker) { inv.isTransient = fn }
}

// NewInvoker builds an Invoker, filling zero policy fields with defaults.
func NewInvoker(policy Policy, opts ...Option) *Invoker {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultBaseDelay
	}

	inv := &Invoker{
		policy:      policy,
		sleep:       sleepContext,
		isTransient: IsThrottling,
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.logger == nil {
		inv.logger = log.New("retry")
		inv.logger.SetLevel(log.OFF)
	}
	return inv
}

// Policy returns the effective policy.
func (inv *Invoker) Policy() Policy {
	return inv.policy
}

// Do runs call until it succeeds, fails with a non-transient error, or the
// policy runs out of attempts. Delays double after each retry and are only
// applied between attempts.
func Do[T any](ctx context.Context, inv *Invoker, target string, call func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	delay := inv.policy.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= inv.policy.MaxAttempts; attempt++ {
		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		if !inv.isTransient(err) {
			return zero, err
		}

		lastErr = err
		if attempt == inv.policy.MaxAttempts {
			break
		}

		inv.logger.Warnf("%s throttled (attempt %d/%d), retrying in %s",
			target, attempt, inv.policy.MaxAttempts, delay)
		if err := inv.sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay *= 2
	}

	return zero, &ExhaustedError{
		Target:   target,
		Attempts: inv.policy.MaxAttempts,
		Last:     lastErr,
	}
}

// IsThrottling reports whether err belongs to the transient class.
func IsThrottling(err error) bool {
	return errors.Is(err, domain.ErrThrottling)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
