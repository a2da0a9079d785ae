package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryableErrorFunc decides whether an error should trigger another retry
// attempt.
type RetryableErrorFunc func(err error) bool

// DefaultRetryableErrors retries everything except circuit-breaker
// sentinels and context cancellation/deadline errors — those signal "don't
// bother trying again right now" rather than a transient fault.
func DefaultRetryableErrors(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitBreakerOpen) || errors.Is(err, ErrCircuitBreakerTimeout) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// RetryConfig configures the backoff schedule and retry eligibility of Retry.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration

	// BackoffMultiplier scales the delay after each attempt.
	BackoffMultiplier float64

	// Jitter randomizes the computed backoff by +/-10% to avoid thundering
	// herds of synchronized retries.
	Jitter bool

	// RetryableErrors decides whether an error should be retried.
	RetryableErrors RetryableErrorFunc
}

// DefaultRetryConfig returns a sane default retry schedule.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		RetryableErrors:   DefaultRetryableErrors,
	}
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= config.BackoffMultiplier
	}
	d := time.Duration(backoff)
	if d > config.MaxBackoff {
		d = config.MaxBackoff
	}
	if config.Jitter {
		delta := float64(d) * 0.1
		d = time.Duration(float64(d) - delta + rand.Float64()*2*delta)
	}
	return d
}

// Retry calls fn until it succeeds, fn's error is non-retryable, ctx is
// done, or MaxRetries is exhausted. It returns the last error encountered.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	_, err := RetryWithStats(ctx, config, fn)
	return err
}

// RetryStats reports what a RetryWithStats call did.
type RetryStats struct {
	TotalAttempts   int
	SuccessfulCalls int
	TotalRetries    int
	AverageBackoff  time.Duration
}

// RetryWithStats is Retry but also reports attempt/backoff statistics,
// useful for surfacing retry pressure on a layer through getMetrics.
func RetryWithStats(ctx context.Context, config RetryConfig, fn func() error) (RetryStats, error) {
	isRetryable := config.RetryableErrors
	if isRetryable == nil {
		isRetryable = DefaultRetryableErrors
	}

	var stats RetryStats
	var totalBackoff time.Duration
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		stats.TotalAttempts++

		if err := ctx.Err(); err != nil {
			return stats, err
		}

		lastErr = fn()
		if lastErr == nil {
			stats.SuccessfulCalls++
			if stats.TotalRetries > 0 {
				stats.AverageBackoff = totalBackoff / time.Duration(stats.TotalRetries)
			}
			return stats, nil
		}

		if !isRetryable(lastErr) {
			return stats, lastErr
		}

		if attempt == config.MaxRetries {
			break
		}

		backoff := calculateBackoff(attempt, config)
		totalBackoff += backoff
		stats.TotalRetries++

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return stats, ctx.Err()
		case <-timer.C:
		}
	}

	if stats.TotalRetries > 0 {
		stats.AverageBackoff = totalBackoff / time.Duration(stats.TotalRetries)
	}
	return stats, lastErr
}

// RetryWithCircuitBreaker is Retry with every attempt routed through cb.
// When cb is open, Execute returns ErrCircuitBreakerOpen without calling fn;
// DefaultRetryableErrors treats that as non-retryable, so the call ends at
// once.
func RetryWithCircuitBreaker(ctx context.Context, config RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return Retry(ctx, config, func() error {
		return cb.Execute(ctx, fn)
	})
}

// ExponentialBackoff is a convenience wrapper around Retry for callers that
// only care about a retry count and a base delay.
func ExponentialBackoff(ctx context.Context, maxRetries int, initialBackoff time.Duration, fn func() error) error {
	return Retry(ctx, RetryConfig{
		MaxRetries:        maxRetries,
		InitialBackoff:    initialBackoff,
		MaxBackoff:        initialBackoff * 100,
		BackoffMultiplier: 2.0,
		RetryableErrors:   DefaultRetryableErrors,
	}, fn)
}
