// Package enrich fills vacancy summaries with the fields only the hh.ru
// detail endpoint returns (experience, schedule, employment, key skills and a
// description snippet).
package enrich

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vacancy-tools/hh-vacancy-csv/pkg/logging"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/ratelimit"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/vacancy"
)

// MinInterval is the smallest gap allowed between two detail requests.
const MinInterval = 200 * time.Millisecond

var detailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hh_details_total",
	Help: "Vacancy detail fetches by outcome",
}, []string{"outcome"})

// Fetcher is the part of the hh.ru client the enricher needs.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// Config controls detail fetching.
type Config struct {
	// Workers is the number of concurrent detail fetches. Values below 1 mean 1.
	Workers int

	// Interval between detail requests, raised to MinInterval when lower.
	Interval time.Duration
}

// DefaultConfig fetches details one at a time, 300ms apart.
func DefaultConfig() Config {
	return Config{
		Workers:  1,
		Interval: 300 * time.Millisecond,
	}
}

// DetailError reports a vacancy whose detail could not be fetched or parsed.
type DetailError struct {
	ID  string
	Err error
}

// Error implements the error interface.
func (e *DetailError) Error() string {
	return fmt.Sprintf("vacancy %s detail: %v", e.ID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DetailError) Unwrap() error {
	return e.Err
}

// Stats summarizes an EnrichAll call.
type Stats struct {
	Requested int
	Enriched  int
	Failed    int
	FailedIDs []string
}

// Enricher fetches vacancy details.
type Enricher struct {
	fetcher Fetcher
	workers int
	pacer   *ratelimit.Tracker
	logger  zerolog.Logger
}

// NewEnricher creates an enricher backed by fetcher.
func NewEnricher(fetcher Fetcher, cfg Config) *Enricher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Interval < MinInterval {
		cfg.Interval = MinInterval
	}

	logger := logging.NewLogger(logging.ComponentEnricher)
	return &Enricher{
		fetcher: fetcher,
		workers: cfg.Workers,
		pacer:   ratelimit.NewTracker(cfg.Interval, logger),
		logger:  logger,
	}
}

// DetailEndpoint returns the detail path of a vacancy.
func DetailEndpoint(id string) string {
	return "/vacancies/" + url.PathEscape(id)
}

// Enrich fetches the detail of s and merges it in. On failure s is returned
// unchanged together with a *DetailError.
func (e *Enricher) Enrich(ctx context.Context, s vacancy.VacancySummary) (vacancy.VacancySummary, error) {
	if err := e.pacer.Wait(ctx); err != nil {
		detailsTotal.WithLabelValues("failed").Inc()
		return s, &DetailError{ID: s.ID, Err: err}
	}

	body, err := e.fetcher.Fetch(ctx, DetailEndpoint(s.ID), nil)
	if err != nil {
		detailsTotal.WithLabelValues("failed").Inc()
		return s, &DetailError{ID: s.ID, Err: err}
	}

	detail, err := vacancy.ParseDetail(body)
	if err != nil {
		detailsTotal.WithLabelValues("failed").Inc()
		return s, &DetailError{ID: s.ID, Err: err}
	}

	if detail.IsEmpty() {
		detailsTotal.WithLabelValues("empty").Inc()
	} else {
		detailsTotal.WithLabelValues("ok").Inc()
	}
	return s.MergeDetail(detail), nil
}

// EnrichAll enriches every summary and returns them in input order.
// Failures are logged and counted; they never abort the batch.
func (e *Enricher) EnrichAll(ctx context.Context, summaries []vacancy.VacancySummary) ([]vacancy.VacancySummary, Stats) {
	start := time.Now()
	out := make([]vacancy.VacancySummary, len(summaries))
	errs := make([]error, len(summaries))

	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for i, s := range summaries {
		g.Go(func() error {
			out[i], errs[i] = e.Enrich(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{Requested: len(summaries)}
	for i, err := range errs {
		if err != nil {
			stats.Failed++
			stats.FailedIDs = append(stats.FailedIDs, summaries[i].ID)
			e.logger.Warn().Err(err).Str("vacancy_id", summaries[i].ID).Msg("Vacancy detail failed, keeping summary")
			continue
		}
		stats.Enriched++
	}

	e.logger.Info().
		Int("requested", stats.Requested).
		Int("enriched", stats.Enriched).
		Int("failed", stats.Failed).
		Int("workers", e.workers).
		Dur("duration", time.Since(start)).
		Msg("Detail enrichment complete")

	return out, stats
}
