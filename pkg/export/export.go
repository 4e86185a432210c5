// Package export turns collected vacancies into the CSV file handed to users.
//
// Files are UTF-8 with a byte order mark so spreadsheet tools pick the right
// encoding. The column order is the field order of Row.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/vacancy-tools/hh-vacancy-csv/pkg/vacancy"
)

// DefaultPath is used when no output path is configured.
const DefaultPath = "vacancies.csv"

// TimestampLayout is the suffix inserted by OutputPath.
const TimestampLayout = "20060102_150405"

// Row is one CSV record. Absent values are empty strings.
type Row struct {
	ID                 string `csv:"id"`
	Title              string `csv:"title"`
	Employer           string `csv:"employer"`
	Area               string `csv:"area"`
	SalaryFrom         string `csv:"salary_from"`
	SalaryTo           string `csv:"salary_to"`
	SalaryCurrency     string `csv:"salary_currency"`
	SalaryGross        string `csv:"salary_gross"`
	PublishedAt        string `csv:"published_at"`
	URL                string `csv:"url"`
	Experience         string `csv:"experience"`
	Schedule           string `csv:"schedule"`
	Employment         string `csv:"employment"`
	Skills             string `csv:"skills"`
	DescriptionSnippet string `csv:"description_snippet"`
	QueryText          string `csv:"query_text"`
	AreaID             string `csv:"area_id"`
	CollectedAt        string `csv:"collected_at"`
}

// Columns returns the header row in file order.
func Columns() []string {
	return []string{
		"id", "title", "employer", "area",
		"salary_from", "salary_to", "salary_currency", "salary_gross",
		"published_at", "url",
		"experience", "schedule", "employment", "skills", "description_snippet",
		"query_text", "area_id", "collected_at",
	}
}

// BuildRows flattens summaries into rows stamped with the run metadata.
func BuildRows(summaries []vacancy.VacancySummary, meta vacancy.RunMetadata) []Row {
	areaID := ""
	if meta.AreaID != nil {
		areaID = strconv.Itoa(*meta.AreaID)
	}
	collectedAt := meta.CollectedAt.Format(time.RFC3339)

	rows := make([]Row, 0, len(summaries))
	for _, s := range summaries {
		row := Row{
			ID:          s.ID,
			Title:       s.Title,
			Employer:    s.Employer,
			Area:        s.Area,
			PublishedAt: s.PublishedAt,
			URL:         s.URL,
			QueryText:   meta.QueryText,
			AreaID:      areaID,
			CollectedAt: collectedAt,
		}
		if sal := s.Salary; sal != nil {
			row.SalaryFrom = optInt(sal.From)
			row.SalaryTo = optInt(sal.To)
			row.SalaryCurrency = sal.Currency
			if sal.Gross != nil {
				row.SalaryGross = "net"
				if *sal.Gross {
					row.SalaryGross = "gross"
				}
			}
		}
		if d := s.Detail; d != nil {
			row.Experience = d.Experience
			row.Schedule = d.Schedule
			row.Employment = d.Employment
			row.Skills = strings.Join(d.Skills, ", ")
			row.DescriptionSnippet = d.DescriptionSnippet
		}
		rows = append(rows, row)
	}
	return rows
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// Write encodes rows as BOM-prefixed CSV with a header row.
func Write(w io.Writer, rows []Row) error {
	bw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	if err := gocsv.Marshal(rows, bw); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteFile writes rows to path. The file is written next to its final
// location first and renamed into place, so a failed run never leaves a
// truncated file behind.
func WriteFile(path string, rows []Row) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create output in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// Read decodes a CSV produced by Write. A leading BOM is optional.
func Read(r io.Reader) ([]Row, error) {
	var rows []Row
	br := transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	if err := gocsv.Unmarshal(br, &rows); err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	return rows, nil
}

// ReadFile reads a CSV file produced by WriteFile.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// OutputPath resolves the output file name. With timestamp set it inserts
// "_YYYYMMDD_HHMMSS" before the .csv extension (appending ".csv" when the
// name has none).
func OutputPath(out string, timestamp bool, now time.Time) string {
	if out == "" {
		out = DefaultPath
	}
	if !timestamp {
		return out
	}

	suffix := "_" + now.Format(TimestampLayout)
	if strings.EqualFold(filepath.Ext(out), ".csv") {
		base := out[:len(out)-len(".csv")]
		return base + suffix + out[len(base):]
	}
	return out + suffix + ".csv"
}
