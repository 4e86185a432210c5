package pagination

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/vacancy-tools/hh-vacancy-csv/pkg/logging"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/vacancy"
)

// SearchEndpoint is the hh.ru vacancy search path.
const SearchEndpoint = "/vacancies"

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hh_pages_total",
		Help: "Search pages requested by outcome",
	}, []string{"outcome"})

	duplicatesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hh_duplicate_vacancies_total",
		Help: "Vacancies skipped because their id was already collected in this run",
	})
)

// Fetcher is the part of the hh.ru client the pager needs.
type Fetcher interface {
	GetJSON(ctx context.Context, endpoint string, params url.Values, out any) error
}

// Result is what a pagination walk collected.
type Result struct {
	// Summaries in page order, each id at most once.
	Summaries []vacancy.VacancySummary

	// PagesFetched counts pages that were fetched and parsed successfully.
	PagesFetched int

	// Found and TotalPages are the totals reported by the last successful page.
	Found      int
	TotalPages int
}

// PageError reports the page that ended a walk early.
type PageError struct {
	Query string
	Page  int
	Err   error
}

// Error implements the error interface.
func (e *PageError) Error() string {
	return fmt.Sprintf("search %s: page %d: %v", e.Query, e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PageError) Unwrap() error {
	return e.Err
}

// Pager fetches search pages sequentially.
type Pager struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

// NewPager creates a pager backed by fetcher.
func NewPager(fetcher Fetcher) *Pager {
	return &Pager{
		fetcher: fetcher,
		logger:  logging.NewLogger(logging.ComponentPager),
	}
}

// Collect walks the search pages for query. On a page failure it returns the
// summaries collected so far together with a *PageError.
func (p *Pager) Collect(ctx context.Context, query vacancy.SearchQuery) (Result, error) {
	start := time.Now()
	var result Result
	seen := make(map[string]struct{})

	p.logger.Info().
		Str("query", query.String()).
		Int("pages", query.PageCount).
		Int("per_page", query.PerPage).
		Msg("Starting search")

	for page := 0; page < query.PageCount; page++ {
		var resp vacancy.SearchResponse
		if err := p.fetcher.GetJSON(ctx, SearchEndpoint, query.Params(page), &resp); err != nil {
			pagesFetchedTotal.WithLabelValues("error").Inc()
			p.logger.Warn().
				Err(err).
				Int("page", page).
				Int("collected", len(result.Summaries)).
				Msg("Search page failed, stopping pagination")
			return result, &PageError{Query: query.String(), Page: page, Err: err}
		}
		pagesFetchedTotal.WithLabelValues("ok").Inc()

		result.PagesFetched++
		result.Found = resp.Found
		result.TotalPages = resp.Pages

		added := 0
		for i, raw := range resp.Items {
			summary, err := vacancy.ParseSummary(raw)
			if err != nil {
				p.logger.Warn().Err(err).Int("page", page).Int("item", i).Msg("Skipping unparsable vacancy")
				continue
			}
			if _, dup := seen[summary.ID]; dup {
				duplicatesSkippedTotal.Inc()
				continue
			}
			seen[summary.ID] = struct{}{}
			result.Summaries = append(result.Summaries, summary)
			added++
		}

		p.logger.Debug().
			Int("page", page).
			Int("items", len(resp.Items)).
			Int("added", added).
			Int("found", resp.Found).
			Int("api_pages", resp.Pages).
			Msg("Fetched search page")

		if len(resp.Items) == 0 || len(resp.Items) < query.PerPage || lastPage(page, resp.Pages) {
			break
		}
	}

	p.logger.Info().
		Str("query", query.String()).
		Int("pages_fetched", result.PagesFetched).
		Int("vacancies", len(result.Summaries)).
		Int("found", result.Found).
		Dur("duration", time.Since(start)).
		Msg("Search complete")

	return result, nil
}

// lastPage reports whether the API said page is the final one. A missing
// page count is not treated as a stop signal.
func lastPage(page, apiPages int) bool {
	return apiPages > 0 && page+1 >= apiPages
}
