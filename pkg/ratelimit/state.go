// Package ratelimit paces outgoing hh.ru requests and tracks the rate limit
// signals (429 responses and Retry-After headers) the API sends back.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Thresholds for rate limit decisions.
const (
	// ConsecutiveWarning is the number of back-to-back 429 responses after which
	// the tracker reports the upstream as throttling us.
	ConsecutiveWarning = 3
)

// RateLimitState is a snapshot of the rate limit signals seen so far.
type RateLimitState struct {
	// TotalSignals counts every 429 response observed during the run.
	TotalSignals int `json:"total_signals"`

	// Consecutive counts 429 responses since the last non-429 response.
	Consecutive int `json:"consecutive"`

	// LastRetryAfter is the most recent Retry-After value, 0 if none was sent.
	LastRetryAfter time.Duration `json:"last_retry_after"`

	// LastSignal is when the last 429 was observed.
	LastSignal time.Time `json:"last_signal"`
}

// IsThrottled returns true while the upstream keeps answering 429.
func (s RateLimitState) IsThrottled() bool {
	return s.Consecutive >= ConsecutiveWarning
}

// IsHealthy returns true if the last response was not a rate limit signal.
func (s RateLimitState) IsHealthy() bool {
	return s.Consecutive == 0
}

// ParseRetryAfter parses a Retry-After header value in either delta-seconds
// or HTTP-date form. It returns 0 when the value is empty, invalid or in the past.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0
	}
	if d := at.Sub(now); d > 0 {
		return d
	}
	return 0
}
