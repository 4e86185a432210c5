package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	hhRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hh_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	hhRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hh_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	hhRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hh_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps every wait, including Retry-After hints.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// JitterFraction spreads each wait by ±fraction. 0 keeps waits deterministic
	// and non-decreasing.
	JitterFraction float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    1500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Validate checks the configuration for values that would break the retry loop.
func (rc RetryConfig) Validate() error {
	if rc.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1 (got %d)", rc.MaxAttempts)
	}
	if rc.InitialBackoff < 0 || rc.MaxBackoff < 0 {
		return fmt.Errorf("backoff durations must not be negative")
	}
	if rc.MaxBackoff < rc.InitialBackoff {
		return fmt.Errorf("max backoff %v is below initial backoff %v", rc.MaxBackoff, rc.InitialBackoff)
	}
	if rc.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1 (got %v)", rc.BackoffMultiplier)
	}
	if rc.JitterFraction < 0 || rc.JitterFraction >= 1 {
		return fmt.Errorf("jitter fraction must be in [0, 1) (got %v)", rc.JitterFraction)
	}
	return nil
}

// Backoff returns the wait after the given failed attempt (1-based), before jitter.
func (rc RetryConfig) Backoff(attempt int) time.Duration {
	backoff := rc.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * rc.BackoffMultiplier)
		if backoff >= rc.MaxBackoff {
			return rc.MaxBackoff
		}
	}
	if backoff > rc.MaxBackoff {
		return rc.MaxBackoff
	}
	return backoff
}

// wait returns the actual wait for an attempt: the backoff, raised to a
// Retry-After hint when that is longer, capped, then jittered.
func (rc RetryConfig) wait(attempt int, retryAfter time.Duration) time.Duration {
	d := rc.Backoff(attempt)
	if retryAfter > d {
		d = retryAfter
	}
	if d > rc.MaxBackoff {
		d = rc.MaxBackoff
	}
	if rc.JitterFraction > 0 {
		d = time.Duration(float64(d) * (1 - rc.JitterFraction + rand.Float64()*2*rc.JitterFraction))
	}
	return d
}

// sleepFunc blocks for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

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

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable error,
// or MaxAttempts is reached.
func retryWithBackoff(ctx context.Context, config RetryConfig, endpoint string, sleep sleepFunc, logger zerolog.Logger, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		errorClass := classOf(err)
		if !shouldRetry(errorClass) {
			return err
		}

		if attempt >= config.MaxAttempts {
			hhRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
			logger.Warn().
				Str("endpoint", endpoint).
				Str("error_class", string(errorClass)).
				Int("max_attempts", config.MaxAttempts).
				Msg("Retry attempts exhausted")
			return &RetryExhaustedError{
				Endpoint: endpoint,
				Attempts: attempt,
				Class:    errorClass,
				Last:     err,
			}
		}

		backoff := config.wait(attempt, retryAfterOf(err))
		hhRetriesTotal.WithLabelValues(string(errorClass)).Inc()
		hhRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(backoff.Seconds())

		logger.Debug().
			Str("endpoint", endpoint).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		if err := sleep(ctx, backoff); err != nil {
			logger.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}
}
