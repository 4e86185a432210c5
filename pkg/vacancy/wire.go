package vacancy

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// SearchResponse mirrors the search endpoint body.
type SearchResponse struct {
	Items   []json.RawMessage `json:"items"`
	Found   int               `json:"found"`
	Pages   int               `json:"pages"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
}

type namedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// searchItem is the typed part of a search hit. Everything else lands in RawFields.
type searchItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Employer     *namedRef `json:"employer"`
	Area         *namedRef `json:"area"`
	Salary       *Salary   `json:"salary"`
	PublishedAt  string    `json:"published_at"`
	URL          string    `json:"url"`
	AlternateURL string    `json:"alternate_url"`
}

var typedItemKeys = map[string]struct{}{
	"id": {}, "name": {}, "employer": {}, "area": {}, "salary": {},
	"published_at": {}, "url": {}, "alternate_url": {},
}

// ParseSummary converts one raw search item into a VacancySummary.
func ParseSummary(raw json.RawMessage) (VacancySummary, error) {
	var item searchItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return VacancySummary{}, fmt.Errorf("decode search item: %w", err)
	}
	if item.ID == "" {
		return VacancySummary{}, fmt.Errorf("search item without id")
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return VacancySummary{}, fmt.Errorf("decode search item fields: %w", err)
	}
	extra := make(map[string]json.RawMessage, len(all))
	for k, v := range all {
		if _, typed := typedItemKeys[k]; !typed {
			extra[k] = v
		}
	}

	s := VacancySummary{
		ID:          item.ID,
		Title:       item.Name,
		PublishedAt: item.PublishedAt,
		URL:         item.AlternateURL,
		APIURL:      item.URL,
		RawFields:   extra,
	}
	if item.Employer != nil {
		s.Employer = item.Employer.Name
	}
	if item.Area != nil {
		s.Area = item.Area.Name
	}
	if item.Salary != nil && (item.Salary.From != nil || item.Salary.To != nil) {
		s.Salary = item.Salary
	}
	return s, nil
}

// detailResponse mirrors the fields read from the detail endpoint.
type detailResponse struct {
	Experience *namedRef `json:"experience"`
	Schedule   *namedRef `json:"schedule"`
	Employment *namedRef `json:"employment"`
	KeySkills  []struct {
		Name string `json:"name"`
	} `json:"key_skills"`
	Description string `json:"description"`
}

// ParseDetail converts a detail endpoint body into a VacancyDetail.
// Absent fields become empty strings.
func ParseDetail(body []byte) (VacancyDetail, error) {
	var resp detailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return VacancyDetail{}, fmt.Errorf("decode vacancy detail: %w", err)
	}

	d := VacancyDetail{
		Experience:         refName(resp.Experience),
		Schedule:           refName(resp.Schedule),
		Employment:         refName(resp.Employment),
		DescriptionSnippet: Snippet(resp.Description, SnippetLength),
	}
	for _, ks := range resp.KeySkills {
		if name := strings.TrimSpace(ks.Name); name != "" {
			d.Skills = append(d.Skills, name)
		}
	}
	return d, nil
}

func refName(r *namedRef) string {
	if r == nil {
		return ""
	}
	return r.Name
}

// Snippet reduces an HTML description to plain text with collapsed whitespace,
// truncated to limit runes.
func Snippet(html string, limit int) string {
	if html == "" {
		return ""
	}

	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		// block elements would otherwise glue neighbouring words together
		doc.Find("p, li, br, div, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
			s.AppendHtml(" ")
		})
		text = doc.Text()
	}

	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}
