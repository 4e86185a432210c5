// Package client provides the hh.ru HTTP client: request pacing, retry with
// exponential backoff on rate limiting, optional response caching and typed errors.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/vacancy-tools/hh-vacancy-csv/pkg/cache"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/logging"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/ratelimit"
)

// Prometheus metrics for hh.ru client operations.
var (
	hhRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hh_requests_total",
		Help: "Total hh.ru requests by endpoint and status",
	}, []string{"endpoint", "status"})

	hhRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hh_request_duration_seconds",
		Help:    "hh.ru request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	hhErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hh_errors_total",
		Help: "Total hh.ru errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the public hh.ru API.
const DefaultBaseURL = "https://api.hh.ru"

// maxErrorMessage bounds how much of an error body ends up in HTTPError.Message.
const maxErrorMessage = 300

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// ClassifyStatus maps an HTTP status code to an error class.
// Returns "" for non-error statuses.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, without trailing slash.
	BaseURL string

	// User-Agent header (REQUIRED by hh.ru)
	UserAgent string

	// Timeout for a single HTTP attempt.
	Timeout time.Duration

	// MinInterval between two requests. 0 disables pacing.
	MinInterval time.Duration

	// Retry policy for rate limit, server and network errors.
	Retry RetryConfig

	// Cache is optional; nil disables response caching.
	Cache *cache.Manager
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		UserAgent:   userAgent,
		Timeout:     25 * time.Second,
		MinInterval: 300 * time.Millisecond,
		Retry:       DefaultRetryConfig(),
	}
}

// Client is the hh.ru API client. One Client is built per run and handed to
// the pager and the enricher.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
	sleep       sleepFunc
}

// New creates a new hh.ru client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %v)", cfg.Timeout)
	}

	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("retry config: %w", err)
	}

	logger := logging.NewLogger(logging.ComponentClient)

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter: ratelimit.NewTracker(cfg.MinInterval, logging.NewLogger(logging.ComponentRateLimit)),
		cache:       cfg.Cache,
		config:      cfg,
		logger:      logger,
		sleep:       sleepContext,
	}, nil
}

// Fetch performs a GET against endpoint with params and returns the JSON body.
// It returns *HTTPError for non-retryable statuses, *RetryExhaustedError when a
// retryable failure persists, and *ParseError when the body is not JSON.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	label := endpointLabel(endpoint)
	cacheKey := cache.CacheKey{Endpoint: endpoint, QueryParams: params}

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", endpoint).Msg("Serving response from cache")
			hhRequestsTotal.WithLabelValues(label, "cached").Inc()
			return entry.Data, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	reqURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	var body []byte
	err = retryWithBackoff(ctx, c.config.Retry, endpoint, c.sleep, c.logger, func() error {
		var attemptErr error
		body, attemptErr = c.do(ctx, endpoint, label, reqURL)
		return attemptErr
	})
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("hh.ru request failed")
		return nil, err
	}

	if !json.Valid(body) {
		hhErrorsTotal.WithLabelValues("parse").Inc()
		return nil, &ParseError{Endpoint: endpoint, Err: errors.New("response body is not valid JSON")}
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, c.cache.NewEntry(body)); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		}
	}

	return body, nil
}

// GetJSON fetches endpoint and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	body, err := c.Fetch(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		hhErrorsTotal.WithLabelValues("parse").Inc()
		return &ParseError{Endpoint: endpoint, Err: err}
	}
	return nil
}

// do executes a single HTTP attempt.
func (c *Client) do(ctx context.Context, endpoint, label, reqURL string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", reqURL).
		Msg("Executing hh.ru request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	hhRequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		hhErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		hhRequestsTotal.WithLabelValues(label, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.rateLimiter.Observe(resp.StatusCode, resp.Header)
	hhRequestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		hhErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, fmt.Errorf("read body of %s: %w", endpoint, err)
	}

	if resp.StatusCode >= 400 {
		errClass := ClassifyStatus(resp.StatusCode)
		hhErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("hh.ru request error")

		return nil, &HTTPError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    errorMessage(resp.Status, body),
			RetryAfter: ratelimit.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	return body, nil
}

func (c *Client) buildURL(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + "/" + strings.TrimLeft(endpoint, "/"))
	if err != nil {
		return "", fmt.Errorf("build url for %s: %w", endpoint, err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String(), nil
}

// RateLimitState returns the rate limit signals observed so far.
func (c *Client) RateLimitState() ratelimit.RateLimitState {
	return c.rateLimiter.State()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetSleepFunc replaces the backoff wait (for testing).
func (c *Client) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	c.sleep = fn
}

// endpointLabel keeps metric cardinality bounded: vacancy ids collapse into one label.
func endpointLabel(endpoint string) string {
	trimmed := strings.Trim(endpoint, "/")
	if strings.HasPrefix(trimmed, "vacancies/") {
		return "/vacancies/{id}"
	}
	return "/" + trimmed
}

func errorMessage(status string, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return status
	}
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}
	return status + ": " + msg
}
