package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vacancy-tools/hh-vacancy-csv/pkg/vacancy"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func testMeta() vacancy.RunMetadata {
	return vacancy.RunMetadata{
		QueryText:   "backend",
		AreaID:      intPtr(1),
		CollectedAt: time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC),
	}
}

func TestBuildRows(t *testing.T) {
	summaries := []vacancy.VacancySummary{
		{
			ID:          "1",
			Title:       "Go developer",
			Employer:    "Acme",
			Area:        "Moscow",
			PublishedAt: "2024-05-01T10:00:00+0300",
			URL:         "https://hh.ru/vacancy/1",
			Salary:      &vacancy.Salary{From: intPtr(200000), Currency: "RUR", Gross: boolPtr(false)},
			Detail: &vacancy.VacancyDetail{
				Experience: "1-3 years",
				Schedule:   "Remote",
				Employment: "Full time",
				Skills:     []string{"Go", "PostgreSQL"},
			},
		},
		{
			ID:     "2",
			Title:  "Python developer",
			Salary: &vacancy.Salary{To: intPtr(300000), Currency: "USD", Gross: boolPtr(true)},
		},
		{ID: "3"},
	}

	rows := BuildRows(summaries, testMeta())
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	first := rows[0]
	if first.SalaryFrom != "200000" || first.SalaryTo != "" || first.SalaryGross != "net" {
		t.Errorf("salary columns = %q %q %q", first.SalaryFrom, first.SalaryTo, first.SalaryGross)
	}
	if first.Skills != "Go, PostgreSQL" {
		t.Errorf("Skills = %q", first.Skills)
	}
	if first.Experience != "1-3 years" || first.Schedule != "Remote" || first.Employment != "Full time" {
		t.Errorf("detail columns = %+v", first)
	}

	if rows[1].SalaryGross != "gross" || rows[1].SalaryTo != "300000" {
		t.Errorf("second row salary = %+v", rows[1])
	}
	if rows[1].Experience != "" || rows[1].Skills != "" {
		t.Errorf("second row should have empty detail columns, got %+v", rows[1])
	}

	third := rows[2]
	if third.SalaryFrom != "" || third.SalaryCurrency != "" || third.SalaryGross != "" {
		t.Errorf("missing salary should give empty columns, got %+v", third)
	}

	for i, row := range rows {
		if row.QueryText != "backend" || row.AreaID != "1" || row.CollectedAt != "2024-05-01T12:30:45Z" {
			t.Errorf("row %d metadata = %q %q %q", i, row.QueryText, row.AreaID, row.CollectedAt)
		}
	}
}

func TestBuildRows_NoArea(t *testing.T) {
	meta := testMeta()
	meta.AreaID = nil
	rows := BuildRows([]vacancy.VacancySummary{{ID: "1"}}, meta)
	if rows[0].AreaID != "" {
		t.Errorf("AreaID = %q, want empty", rows[0].AreaID)
	}
}

func TestWrite_BOMAndHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, BuildRows([]vacancy.VacancySummary{{ID: "1", Title: "Go, Kafka"}}, testMeta())); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data := buf.Bytes()
	if !bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatalf("output does not start with a UTF-8 BOM: % x", data[:3])
	}

	lines := strings.Split(strings.TrimRight(string(data[3:]), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2: %q", len(lines), lines)
	}
	if lines[0] != strings.Join(Columns(), ",") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], `"Go, Kafka"`) {
		t.Errorf("field with comma should be quoted: %q", lines[1])
	}
}

func TestWrite_EmptyHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	body := strings.TrimPrefix(buf.String(), "\ufeff")
	if strings.TrimRight(body, "\n") != strings.Join(Columns(), ",") {
		t.Errorf("body = %q, want header only", body)
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	summaries := []vacancy.VacancySummary{
		{ID: "10", Title: "Бэкенд-разработчик", Employer: "ООО \"Ромашка\""},
		{ID: "11", Title: "Go developer", Detail: &vacancy.VacancyDetail{Skills: []string{"Go"}}},
		{ID: "12", Title: "SRE"},
	}
	if err := WriteFile(path, BuildRows(summaries, testMeta())); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	rows, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(rows) != len(summaries) {
		t.Fatalf("rows = %d, want %d", len(rows), len(summaries))
	}
	for i, s := range summaries {
		if rows[i].ID != s.ID || rows[i].Title != s.Title {
			t.Errorf("row %d = %+v, want id %s title %s", i, rows[i], s.ID, s.Title)
		}
	}
	if rows[0].Employer != `ООО "Ромашка"` {
		t.Errorf("Employer = %q", rows[0].Employer)
	}
	if rows[1].Skills != "Go" {
		t.Errorf("Skills = %q", rows[1].Skills)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.csv")
	if err := WriteFile(path, nil); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestOutputPath(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 5, 7, 0, time.UTC)

	tests := []struct {
		name      string
		out       string
		timestamp bool
		want      string
	}{
		{name: "default", out: "", want: "vacancies.csv"},
		{name: "as given", out: "jobs.csv", want: "jobs.csv"},
		{name: "timestamp", out: "jobs.csv", timestamp: true, want: "jobs_20240501_090507.csv"},
		{name: "timestamp default", out: "", timestamp: true, want: "vacancies_20240501_090507.csv"},
		{name: "timestamp upper ext", out: "out/JOBS.CSV", timestamp: true, want: "out/JOBS_20240501_090507.CSV"},
		{name: "timestamp no ext", out: "jobs", timestamp: true, want: "jobs_20240501_090507.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutputPath(tt.out, tt.timestamp, now); got != tt.want {
				t.Errorf("OutputPath(%q, %v) = %q, want %q", tt.out, tt.timestamp, got, tt.want)
			}
		})
	}
}
