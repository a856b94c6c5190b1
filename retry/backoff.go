// Package retry provides the exponential backoff used to redeliver
// webhook notifications.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Strategy defines how often and how patiently a delivery is retried.
//
// The delay before retry n (0-based) is min(BaseDelay * ExponentialBase^n, MaxDelay).
//
// Example with defaults (1s base, 2.0 exponential, 30s max, 5 attempts):
//
//	Attempt 1: immediately
//	Attempt 2: after 1s
//	Attempt 3: after 2s
//	Attempt 4: after 4s
//	Attempt 5: after 8s
type Strategy struct {
	MaxAttempts     int           // Total attempts including the first one
	BaseDelay       time.Duration // Delay before the first retry
	MaxDelay        time.Duration // Maximum retry delay cap
	ExponentialBase float64       // Backoff multiplier (e.g., 2.0 for doubling)
}

// DefaultStrategy returns the default webhook retry strategy.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxAttempts:     5,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}
}

// Validate checks that the strategy can be executed.
func (s Strategy) Validate() error {
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be > 0, got %d", s.MaxAttempts)
	}
	if s.BaseDelay < 0 || s.MaxDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if s.ExponentialBase < 1 {
		return fmt.Errorf("exponential base must be >= 1, got %v", s.ExponentialBase)
	}
	return nil
}

// CalculateRetryDelay returns the delay before retry number retry (0-based).
func (s Strategy) CalculateRetryDelay(retry int) time.Duration {
	if retry <= 0 {
		return s.BaseDelay
	}

	delay := float64(s.BaseDelay) * math.Pow(s.ExponentialBase, float64(retry))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}

	return time.Duration(delay)
}

// IsRetryable reports whether another attempt is allowed after attemptCount attempts.
func (s Strategy) IsRetryable(attemptCount int) bool {
	return attemptCount < s.MaxAttempts
}

// GetRetrySchedule returns a human-readable description of the schedule.
func (s Strategy) GetRetrySchedule() string {
	schedule := "Retry Schedule:\n  Attempt 1: immediately\n"
	for i := 2; i <= s.MaxAttempts; i++ {
		schedule += fmt.Sprintf("  Attempt %d: after %v\n", i, s.CalculateRetryDelay(i-2))
	}
	return schedule
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a permanent error, the attempts
// are exhausted or ctx is done. It returns the number of attempts made
// and the last error.
func (s Strategy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	attempts := 0
	for {
		attempts++
		err := fn(ctx)
		if err == nil {
			return attempts, nil
		}
		if IsPermanent(err) || !s.IsRetryable(attempts) {
			return attempts, err
		}

		timer := time.NewTimer(s.CalculateRetryDelay(attempts - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
