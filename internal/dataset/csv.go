package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RosenErik/svk-scraper/pkg/models"
)

// Column layout of the persisted dataset files
var csvHeader = []string{"Date", "Timme", "Prognos (MW)", "Förbrukning (MW)", "DateTime", "DateSource"}

const (
	dateFormat      = "2006-01-02"
	timestampFormat = "2006-01-02 15:04:05"
)

// Standard layout under the data directory: raw per-run snapshots for
// debugging, the processed master file, and the summary next to it.

// MasterPath returns the master dataset location
func MasterPath(dataDir string) string {
	return filepath.Join(dataDir, "processed", "svk_power_data_master.csv")
}

// RawPath returns the per-run snapshot location for a run started at ts
func RawPath(dataDir string, ts time.Time) string {
	return filepath.Join(dataDir, "raw", fmt.Sprintf("svk_power_data_%s.csv", ts.Format("20060102_150405")))
}

// SummaryPath returns the summary report location
func SummaryPath(dataDir string) string {
	return filepath.Join(dataDir, "processed", "data_summary.txt")
}

// Load reads a dataset CSV. A missing file yields an empty dataset so
// the first run starts fresh.
func Load(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Dataset{}, nil
		}
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer file.Close()

	ds, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ds, nil
}

// Read parses dataset CSV content. Columns are located by header name so
// files survive reordering; Date and Timme are the required identity. A
// Date cell that does not parse is kept as raw text so the row's
// identity survives the round trip.
func Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return &Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	// Find column indices
	dateCol, hourCol := -1, -1
	forecastCol, consumptionCol := -1, -1
	timestampCol, sourceCol := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "Date":
			dateCol = i
		case "Timme":
			hourCol = i
		case "Prognos (MW)":
			forecastCol = i
		case "Förbrukning (MW)":
			consumptionCol = i
		case "DateTime":
			timestampCol = i
		case "DateSource":
			sourceCol = i
		}
	}

	if dateCol == -1 || hourCol == -1 {
		return nil, fmt.Errorf("could not find required columns (Date and Timme) in CSV")
	}

	var records []models.PowerRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}

		rec := models.PowerRecord{DateSource: models.DateSourcePage}
		if v := field(row, dateCol); v != "" {
			if t, perr := time.Parse(dateFormat, v); perr == nil {
				rec.Date = t
			} else {
				rec.RawDate = v
			}
		}
		rec.Hour = field(row, hourCol)
		rec.ForecastMW = parseFloatField(field(row, forecastCol))
		rec.ConsumptionMW = parseFloatField(field(row, consumptionCol))
		if v := field(row, timestampCol); v != "" {
			if t, perr := time.Parse(timestampFormat, v); perr == nil {
				rec.Timestamp = t
			}
		}
		if v := field(row, sourceCol); v != "" {
			rec.DateSource = v
		}

		records = append(records, rec)
	}

	return &Dataset{Records: records}, nil
}

// Save writes the dataset to path, creating parent directories
func Save(path string, ds *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := Write(file, ds); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return file.Close()
}

// Write renders the dataset as CSV
func Write(w io.Writer, ds *Dataset) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range ds.Records {
		row := []string{
			formatDate(r),
			r.Hour,
			formatMW(r.ForecastMW),
			formatMW(r.ConsumptionMW),
			formatTimestamp(r.Timestamp),
			r.DateSource,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseFloatField(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// formatDate renders the date cell, falling back to the displayed text
// for dates that never parsed
func formatDate(r models.PowerRecord) string {
	if r.Date.IsZero() {
		return r.RawDate
	}
	return r.Date.Format(dateFormat)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampFormat)
}

func formatMW(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
