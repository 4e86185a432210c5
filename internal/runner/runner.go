// Package runner wires one export run: search pagination, optional detail
// enrichment and the CSV write.
package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vacancy-tools/hh-vacancy-csv/internal/config"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/cache"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/client"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/enrich"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/export"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/logging"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/pagination"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/vacancy"
)

// ErrNoPages is returned when not a single search page could be fetched.
// No file is written in that case.
var ErrNoPages = errors.New("no search page could be fetched")

// redisPingTimeout bounds the startup check of the optional cache.
const redisPingTimeout = 3 * time.Second

// Report describes a finished run.
type Report struct {
	Path         string
	Rows         int
	PagesFetched int
	Found        int

	DetailsRequested int
	DetailsFailed    int

	// Partial is set when a search page after the first failed. PageErr holds
	// that failure.
	Partial bool
	PageErr error

	RateLimitSignals int
	CacheEnabled     bool
	Duration         time.Duration
}

// Runner executes export runs.
type Runner struct {
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates a runner.
func New() *Runner {
	return &Runner{
		now:    time.Now,
		logger: logging.NewLogger(logging.ComponentRunner),
	}
}

// SetHTTPClient replaces the HTTP client used for hh.ru (for testing).
func (r *Runner) SetHTTPClient(c *http.Client) {
	r.httpClient = c
}

// SetSleepFunc replaces the retry backoff wait (for testing).
func (r *Runner) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleep = fn
}

// SetClock replaces the clock used for collected_at and file timestamps (for testing).
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Run performs one export. It fails with ErrNoPages when the first search
// page cannot be fetched. A later page failure still writes the collected rows
// and is reported through Report.Partial. Detail failures never fail a run.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (Report, error) {
	start := r.now()
	var report Report

	query, err := vacancy.NewSearchQuery(cfg.Text, cfg.AreaID, cfg.Pages, cfg.PerPage)
	if err != nil {
		return report, fmt.Errorf("build query: %w", err)
	}
	meta := vacancy.NewRunMetadata(query, start)

	cacheManager, closeCache := r.openCache(ctx, cfg)
	defer closeCache()
	report.CacheEnabled = cacheManager != nil

	hh, err := client.New(r.clientConfig(cfg, cacheManager))
	if err != nil {
		return report, fmt.Errorf("create hh.ru client: %w", err)
	}
	defer hh.Close()
	if r.httpClient != nil {
		hh.SetHTTPClient(r.httpClient)
	}
	if r.sleep != nil {
		hh.SetSleepFunc(r.sleep)
	}

	result, err := pagination.NewPager(hh).Collect(ctx, query)
	report.PagesFetched = result.PagesFetched
	report.Found = result.Found
	if err != nil {
		if result.PagesFetched == 0 {
			report.RateLimitSignals = hh.RateLimitState().TotalSignals
			return report, fmt.Errorf("%w: %w", ErrNoPages, err)
		}
		report.Partial = true
		report.PageErr = err
		r.logger.Warn().
			Err(err).
			Int("pages_fetched", result.PagesFetched).
			Int("vacancies", len(result.Summaries)).
			Msg("Search stopped early, writing partial results")
	}

	summaries := result.Summaries
	if cfg.Details && len(summaries) > 0 {
		enricher := enrich.NewEnricher(hh, enrich.Config{
			Workers:  cfg.DetailWorkers,
			Interval: cfg.Delay,
		})
		var stats enrich.Stats
		summaries, stats = enricher.EnrichAll(ctx, summaries)
		report.DetailsRequested = stats.Requested
		report.DetailsFailed = stats.Failed
	}

	path := export.OutputPath(cfg.Out, cfg.Timestamp, start)
	rows := export.BuildRows(summaries, meta)
	if err := export.WriteFile(path, rows); err != nil {
		return report, err
	}

	report.Path = path
	report.Rows = len(rows)
	report.RateLimitSignals = hh.RateLimitState().TotalSignals
	report.Duration = r.now().Sub(start)

	r.logger.Info().
		Str("path", path).
		Int("rows", report.Rows).
		Int("pages", report.PagesFetched).
		Int("found", report.Found).
		Int("details_failed", report.DetailsFailed).
		Bool("partial", report.Partial).
		Dur("duration", report.Duration).
		Msg("CSV written")

	return report, nil
}

func (r *Runner) clientConfig(cfg *config.Config, cacheManager *cache.Manager) client.Config {
	cc := client.DefaultConfig(cfg.UserAgent)
	cc.BaseURL = cfg.BaseURL
	cc.Timeout = cfg.Timeout
	cc.MinInterval = cfg.Delay
	cc.Retry.MaxAttempts = cfg.MaxAttempts
	cc.Retry.InitialBackoff = cfg.InitialBackoff
	cc.Retry.MaxBackoff = cfg.MaxBackoff
	cc.Cache = cacheManager
	return cc
}

// openCache connects to Redis when configured. An unreachable Redis disables
// caching for the run instead of failing it.
func (r *Runner) openCache(ctx context.Context, cfg *config.Config) (*cache.Manager, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}

	logger := logging.NewLogger(logging.ComponentCache)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, running without cache")
		rdb.Close()
		return nil, func() {}
	}

	logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("Response cache enabled")
	return cache.NewManager(rdb, cfg.CacheTTL), func() { rdb.Close() }
}
