package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitSignalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hh_rate_limit_signals_total",
		Help: "Total number of 429 responses received from hh.ru",
	})

	rateLimitConsecutive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hh_rate_limit_consecutive",
		Help: "Number of consecutive 429 responses at the time of the last observation",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hh_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a pacing slot before a request",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Tracker paces requests to at most one per interval and records rate limit signals.
// It is safe for concurrent use.
type Tracker struct {
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu    sync.Mutex
	state RateLimitState
	now   func() time.Time
}

// NewTracker creates a tracker that allows one request per interval.
// An interval <= 0 disables pacing.
func NewTracker(interval time.Duration, logger zerolog.Logger) *Tracker {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Tracker{
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		now:     time.Now,
	}
}

// Wait blocks until the next request slot is available or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for request slot: %w", err)
	}
	rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// Observe records the outcome of one response. Only 429 responses count as signals;
// any other status resets the consecutive counter.
func (t *Tracker) Observe(status int, headers http.Header) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if status != http.StatusTooManyRequests {
		if t.state.Consecutive > 0 {
			t.logger.Info().
				Int("after_signals", t.state.Consecutive).
				Msg("Rate limit cleared")
		}
		t.state.Consecutive = 0
		rateLimitConsecutive.Set(0)
		return
	}

	now := t.now()
	t.state.TotalSignals++
	t.state.Consecutive++
	t.state.LastSignal = now
	t.state.LastRetryAfter = 0
	if headers != nil {
		t.state.LastRetryAfter = ParseRetryAfter(headers.Get("Retry-After"), now)
	}

	rateLimitSignalsTotal.Inc()
	rateLimitConsecutive.Set(float64(t.state.Consecutive))

	event := t.logger.Debug()
	if t.state.IsThrottled() {
		event = t.logger.Warn()
	}
	event.
		Int("consecutive", t.state.Consecutive).
		Int("total", t.state.TotalSignals).
		Dur("retry_after", t.state.LastRetryAfter).
		Msg("hh.ru rate limit signal")
}

// State returns a snapshot of the current rate limit state.
func (t *Tracker) State() RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
