package vacancy

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestNewSearchQuery(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		area        *int
		pages       int
		perPage     int
		wantPages   int
		wantPerPage int
		wantErr     error
	}{
		{
			name:        "valid query",
			text:        "backend",
			area:        intPtr(1),
			pages:       2,
			perPage:     50,
			wantPages:   2,
			wantPerPage: 50,
		},
		{
			name:        "per page above limit is clamped",
			text:        "go",
			pages:       1,
			perPage:     500,
			wantPages:   1,
			wantPerPage: MaxPerPage,
		},
		{
			name:        "zero values are clamped",
			text:        "go",
			pages:       0,
			perPage:     0,
			wantPages:   1,
			wantPerPage: MinPerPage,
		},
		{
			name:    "blank text",
			text:    "   ",
			pages:   1,
			perPage: 10,
			wantErr: ErrEmptyText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewSearchQuery(tt.text, tt.area, tt.pages, tt.perPage)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q.PageCount != tt.wantPages {
				t.Errorf("PageCount = %d, want %d", q.PageCount, tt.wantPages)
			}
			if q.PerPage != tt.wantPerPage {
				t.Errorf("PerPage = %d, want %d", q.PerPage, tt.wantPerPage)
			}
		})
	}
}

func TestNewSearchQuery_CopiesArea(t *testing.T) {
	area := 1
	q, err := NewSearchQuery("go", &area, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	area = 2
	if *q.AreaID != 1 {
		t.Errorf("AreaID changed with caller variable: got %d", *q.AreaID)
	}
}

func TestSearchQuery_Params(t *testing.T) {
	q, _ := NewSearchQuery("backend", intPtr(1), 2, 20)
	params := q.Params(1)

	want := map[string]string{"text": "backend", "area": "1", "page": "1", "per_page": "20"}
	for k, v := range want {
		if got := params.Get(k); got != v {
			t.Errorf("param %s = %q, want %q", k, got, v)
		}
	}

	noArea, _ := NewSearchQuery("backend", nil, 1, 20)
	if noArea.Params(0).Has("area") {
		t.Error("area param should be omitted when no area is set")
	}
}

func TestParseSummary(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "93000001",
		"name": "Backend Developer",
		"employer": {"id": "1", "name": "Acme"},
		"area": {"id": "1", "name": "Moscow"},
		"salary": {"from": 200000, "to": null, "currency": "RUR", "gross": false},
		"published_at": "2024-05-01T10:00:00+0300",
		"url": "https://api.hh.ru/vacancies/93000001",
		"alternate_url": "https://hh.ru/vacancy/93000001",
		"schedule": {"id": "remote", "name": "Remote"}
	}`)

	s, err := ParseSummary(raw)
	if err != nil {
		t.Fatalf("ParseSummary failed: %v", err)
	}

	if s.ID != "93000001" || s.Title != "Backend Developer" || s.Employer != "Acme" || s.Area != "Moscow" {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.URL != "https://hh.ru/vacancy/93000001" {
		t.Errorf("URL = %q", s.URL)
	}
	if s.Salary == nil || s.Salary.From == nil || *s.Salary.From != 200000 || s.Salary.To != nil {
		t.Errorf("unexpected salary: %+v", s.Salary)
	}
	if _, ok := s.RawFields["schedule"]; !ok {
		t.Error("untyped field schedule should be kept in RawFields")
	}
	if _, ok := s.RawFields["id"]; ok {
		t.Error("typed field id should not be duplicated in RawFields")
	}
}

func TestParseSummary_Errors(t *testing.T) {
	if _, err := ParseSummary(json.RawMessage(`{"name": "no id"}`)); err == nil {
		t.Error("expected error for item without id")
	}
	if _, err := ParseSummary(json.RawMessage(`[1,2]`)); err == nil {
		t.Error("expected error for non-object item")
	}
}

func TestParseSummary_EmptySalaryDropped(t *testing.T) {
	s, err := ParseSummary(json.RawMessage(`{"id": "1", "salary": {"from": null, "to": null, "currency": "RUR"}}`))
	if err != nil {
		t.Fatalf("ParseSummary failed: %v", err)
	}
	if s.Salary != nil {
		t.Errorf("salary without bounds should be nil, got %+v", s.Salary)
	}
}

func TestParseDetail(t *testing.T) {
	body := []byte(`{
		"experience": {"id": "between1And3", "name": "1-3 years"},
		"schedule": {"id": "fullDay", "name": "Full day"},
		"employment": null,
		"key_skills": [{"name": "Go"}, {"name": " "}, {"name": "PostgreSQL"}],
		"description": "<p>We   build</p><p>services</p>"
	}`)

	d, err := ParseDetail(body)
	if err != nil {
		t.Fatalf("ParseDetail failed: %v", err)
	}
	if d.Experience != "1-3 years" || d.Schedule != "Full day" {
		t.Errorf("unexpected detail: %+v", d)
	}
	if d.Employment != "" {
		t.Errorf("absent employment should be empty, got %q", d.Employment)
	}
	if strings.Join(d.Skills, ",") != "Go,PostgreSQL" {
		t.Errorf("Skills = %v", d.Skills)
	}
	if d.DescriptionSnippet != "We build services" {
		t.Errorf("DescriptionSnippet = %q", d.DescriptionSnippet)
	}
}

func TestParseDetail_Malformed(t *testing.T) {
	if _, err := ParseDetail([]byte(`{"experience":`)); err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		limit int
		want  string
	}{
		{name: "empty", html: "", limit: 10, want: ""},
		{name: "plain text", html: "hello   world\n", limit: 50, want: "hello world"},
		{name: "strips tags", html: "<b>Go</b> <i>developer</i>", limit: 50, want: "Go developer"},
		{name: "truncates runes", html: "привет мир", limit: 6, want: "привет"},
		{name: "no limit", html: "a b c", limit: 0, want: "a b c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Snippet(tt.html, tt.limit); got != tt.want {
				t.Errorf("Snippet() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeDetail(t *testing.T) {
	s := VacancySummary{ID: "1"}
	merged := s.MergeDetail(VacancyDetail{Experience: "none", Skills: []string{"Go"}})

	if s.Detail != nil {
		t.Error("MergeDetail must not mutate the receiver")
	}
	if merged.Detail == nil || merged.Detail.Experience != "none" {
		t.Fatalf("detail not merged: %+v", merged.Detail)
	}

	again := merged.MergeDetail(VacancyDetail{Experience: "other", Schedule: "remote"})
	if again.Detail.Experience != "none" {
		t.Errorf("existing experience overwritten: %q", again.Detail.Experience)
	}
	if again.Detail.Schedule != "remote" {
		t.Errorf("empty schedule not filled: %q", again.Detail.Schedule)
	}
}

func TestVacancyDetail_IsEmpty(t *testing.T) {
	var nilDetail *VacancyDetail
	if !nilDetail.IsEmpty() {
		t.Error("nil detail should be empty")
	}
	if !(&VacancyDetail{}).IsEmpty() {
		t.Error("zero detail should be empty")
	}
	if (&VacancyDetail{Skills: []string{"Go"}}).IsEmpty() {
		t.Error("detail with skills should not be empty")
	}
}

func TestNewRunMetadata(t *testing.T) {
	q, _ := NewSearchQuery("go", intPtr(2), 1, 10)
	now := time.Date(2024, 5, 1, 10, 0, 0, 999, time.UTC)

	meta := NewRunMetadata(q, now)
	if meta.QueryText != "go" || meta.AreaID == nil || *meta.AreaID != 2 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.CollectedAt.Nanosecond() != 0 {
		t.Errorf("CollectedAt should be truncated to seconds: %v", meta.CollectedAt)
	}
}
