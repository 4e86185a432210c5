// Package testutil provides a scriptable hh.ru API server for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mock hh.ru response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockHH is a configurable mock of the hh.ru search and detail endpoints.
//
// Responses are scripted per search page and per vacancy id. A script is a
// sequence: each request consumes the next response and the last one repeats.
// Unscripted search pages answer with an empty page, unscripted vacancies
// with 404.
type MockHH struct {
	server *httptest.Server

	mu      sync.Mutex
	pages   map[int][]MockResponse
	details map[string][]MockResponse

	searchRequests map[int]int
	detailRequests map[string]int
	lastQuery      url.Values
	lastUserAgent  string
}

// NewMockHH starts a mock hh.ru server.
func NewMockHH() *MockHH {
	m := &MockHH{
		pages:          make(map[int][]MockResponse),
		details:        make(map[string][]MockResponse),
		searchRequests: make(map[int]int),
		detailRequests: make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the mock server URL, usable as the client base URL.
func (m *MockHH) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockHH) Close() {
	m.server.Close()
}

// SetSearchPage scripts the responses of a zero-based search page.
func (m *MockHH) SetSearchPage(page int, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = responses
}

// SetDetail scripts the responses of a vacancy detail.
func (m *MockHH) SetDetail(id string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details[id] = responses
}

// SearchRequests returns how often a search page was requested.
func (m *MockHH) SearchRequests(page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchRequests[page]
}

// TotalSearchRequests returns the number of search requests over all pages.
func (m *MockHH) TotalSearchRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.searchRequests {
		total += n
	}
	return total
}

// DetailRequests returns how often a vacancy detail was requested.
func (m *MockHH) DetailRequests(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detailRequests[id]
}

// LastQuery returns the query string of the last search request.
func (m *MockHH) LastQuery() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

// LastUserAgent returns the User-Agent of the last request.
func (m *MockHH) LastUserAgent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUserAgent
}

func (m *MockHH) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimRight(r.URL.Path, "/")

	m.mu.Lock()
	m.lastUserAgent = r.UserAgent()

	var resp MockResponse
	switch {
	case path == "/vacancies":
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		m.lastQuery = r.URL.Query()
		resp = next(m.pages[page], m.searchRequests[page], NewJSONResponse(SearchPageBody(0, 0)))
		m.searchRequests[page]++
	case strings.HasPrefix(path, "/vacancies/"):
		id := strings.TrimPrefix(path, "/vacancies/")
		resp = next(m.details[id], m.detailRequests[id], NewNotFoundResponse())
		m.detailRequests[id]++
	default:
		resp = NewNotFoundResponse()
	}
	m.mu.Unlock()

	write(w, resp)
}

func next(script []MockResponse, served int, fallback MockResponse) MockResponse {
	if len(script) == 0 {
		return fallback
	}
	if served >= len(script) {
		return script[len(script)-1]
	}
	return script[served]
}

func write(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewJSONResponse creates a 200 OK response with a JSON body.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response. A non-zero
// retryAfter is sent as a Retry-After header in seconds.
func NewRateLimitResponse(retryAfter int) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors":[{"type":"too_many_requests"}]}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
	if retryAfter > 0 {
		resp.Headers["Retry-After"] = strconv.Itoa(retryAfter)
	}
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors":[{"type":"internal_error"}]}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"errors":[{"type":"not_found"}]}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// SearchPageBody renders a search page with one item per id.
func SearchPageBody(found, pages int, ids ...string) string {
	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]any{
			"id":            id,
			"name":          "Backend developer " + id,
			"employer":      map[string]any{"id": "1455", "name": "Acme"},
			"area":          map[string]any{"id": "1", "name": "Moscow"},
			"salary":        map[string]any{"from": 150000, "to": nil, "currency": "RUR", "gross": false},
			"published_at":  "2024-05-01T10:00:00+0300",
			"url":           "https://api.hh.ru/vacancies/" + id,
			"alternate_url": "https://hh.ru/vacancy/" + id,
			"archived":      false,
		})
	}
	body, _ := json.Marshal(map[string]any{
		"items": items,
		"found": found,
		"pages": pages,
	})
	return string(body)
}

// DetailBody renders a vacancy detail with the given skills.
func DetailBody(experience string, skills ...string) string {
	keySkills := make([]map[string]string, 0, len(skills))
	for _, s := range skills {
		keySkills = append(keySkills, map[string]string{"name": s})
	}
	body, _ := json.Marshal(map[string]any{
		"experience":  map[string]string{"id": "between1And3", "name": experience},
		"schedule":    map[string]string{"id": "remote", "name": "Remote"},
		"employment":  map[string]string{"id": "full", "name": "Full time"},
		"key_skills":  keySkills,
		"description": "<p>Build <strong>services</strong> in Go.</p>",
	})
	return string(body)
}
