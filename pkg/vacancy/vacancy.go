// Package vacancy defines the hh.ru vacancy records collected by the exporter
// and the wire shapes of the search and detail endpoints.
package vacancy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// API limits for the search endpoint.
const (
	MinPerPage = 1
	MaxPerPage = 100

	// SnippetLength is the maximum description snippet length in runes.
	SnippetLength = 300
)

// ErrEmptyText is returned when a search query has no text.
var ErrEmptyText = errors.New("search text is empty")

// SearchQuery describes one search run. Treat it as read-only after NewSearchQuery.
type SearchQuery struct {
	Text      string
	AreaID    *int
	PageCount int
	PerPage   int
}

// NewSearchQuery validates and normalizes query input.
// PerPage is clamped to [MinPerPage, MaxPerPage] and PageCount to at least 1.
func NewSearchQuery(text string, areaID *int, pageCount, perPage int) (SearchQuery, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SearchQuery{}, ErrEmptyText
	}

	if pageCount < 1 {
		pageCount = 1
	}
	if perPage < MinPerPage {
		perPage = MinPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	var area *int
	if areaID != nil {
		v := *areaID
		area = &v
	}

	return SearchQuery{
		Text:      text,
		AreaID:    area,
		PageCount: pageCount,
		PerPage:   perPage,
	}, nil
}

// Params builds the search endpoint query parameters for a zero-based page index.
func (q SearchQuery) Params(page int) url.Values {
	params := url.Values{}
	params.Set("text", q.Text)
	if q.AreaID != nil {
		params.Set("area", strconv.Itoa(*q.AreaID))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(q.PerPage))
	return params
}

// String is used in log and error context.
func (q SearchQuery) String() string {
	if q.AreaID != nil {
		return fmt.Sprintf("%q (area %d)", q.Text, *q.AreaID)
	}
	return fmt.Sprintf("%q", q.Text)
}

// Salary is the salary range of a vacancy. Any bound may be missing.
type Salary struct {
	From     *int   `json:"from"`
	To       *int   `json:"to"`
	Currency string `json:"currency"`
	Gross    *bool  `json:"gross"`
}

// VacancySummary is one search hit, optionally carrying its detail.
type VacancySummary struct {
	ID          string
	Title       string
	Employer    string
	Area        string
	PublishedAt string
	URL         string // human facing page (alternate_url)
	APIURL      string // detail endpoint reported by the API (url)
	Salary      *Salary
	RawFields   map[string]json.RawMessage
	Detail      *VacancyDetail
}

// VacancyDetail holds the fields only the detail endpoint returns.
type VacancyDetail struct {
	Experience         string
	Schedule           string
	Employment         string
	Skills             []string
	DescriptionSnippet string
}

// IsEmpty reports whether no detail field carries a value.
func (d *VacancyDetail) IsEmpty() bool {
	if d == nil {
		return true
	}
	return d.Experience == "" && d.Schedule == "" && d.Employment == "" &&
		len(d.Skills) == 0 && d.DescriptionSnippet == ""
}

// MergeDetail returns a copy of s with d merged in.
// Fields that already hold a value are kept.
func (s VacancySummary) MergeDetail(d VacancyDetail) VacancySummary {
	merged := VacancyDetail{}
	if s.Detail != nil {
		merged = *s.Detail
		merged.Skills = append([]string(nil), s.Detail.Skills...)
	}

	if merged.Experience == "" {
		merged.Experience = d.Experience
	}
	if merged.Schedule == "" {
		merged.Schedule = d.Schedule
	}
	if merged.Employment == "" {
		merged.Employment = d.Employment
	}
	if len(merged.Skills) == 0 && len(d.Skills) > 0 {
		merged.Skills = append([]string(nil), d.Skills...)
	}
	if merged.DescriptionSnippet == "" {
		merged.DescriptionSnippet = d.DescriptionSnippet
	}

	s.Detail = &merged
	return s
}

// RunMetadata is attached identically to every exported row.
type RunMetadata struct {
	QueryText   string
	AreaID      *int
	CollectedAt time.Time
}

// NewRunMetadata stamps a query with the collection time, truncated to seconds.
func NewRunMetadata(q SearchQuery, now time.Time) RunMetadata {
	return RunMetadata{
		QueryText:   q.Text,
		AreaID:      q.AreaID,
		CollectedAt: now.Truncate(time.Second),
	}
}
