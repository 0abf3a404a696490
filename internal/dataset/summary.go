package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RosenErik/svk-scraper/pkg/models"
)

// ColumnCount reports how many records carry a value in one column
type ColumnCount struct {
	Name    string
	NonNull int
}

// MWStats aggregates one numeric measurement column
type MWStats struct {
	Count int
	Mean  float64
	Min   float64
	Max   float64
}

// Summary holds the statistics reported for a dataset
type Summary struct {
	GeneratedAt     time.Time
	TotalRecords    int
	UniqueDates     int
	FirstDate       time.Time
	LastDate        time.Time
	LatestTimestamp time.Time
	ClockDates      int // records whose date came from the wall clock, not the page
	Columns         []ColumnCount
	Forecast        MWStats
	Consumption     MWStats
}

// Summarize computes the report statistics for a dataset
func Summarize(ds *Dataset, now time.Time) Summary {
	s := Summary{
		GeneratedAt:  now,
		TotalRecords: len(ds.Records),
		UniqueDates:  ds.UniqueDates(),
	}
	s.FirstDate, s.LastDate = ds.DateRange()
	s.LatestTimestamp = ds.LatestTimestamp()

	var dates, hours, timestamps int
	var fvals, cvals []float64
	for _, r := range ds.Records {
		if !r.Date.IsZero() || r.RawDate != "" {
			dates++
		}
		if r.Hour != "" {
			hours++
		}
		if r.ForecastMW != nil {
			fvals = append(fvals, *r.ForecastMW)
		}
		if r.ConsumptionMW != nil {
			cvals = append(cvals, *r.ConsumptionMW)
		}
		if !r.Timestamp.IsZero() {
			timestamps++
		}
		if r.DateSource == models.DateSourceClock {
			s.ClockDates++
		}
	}

	s.Columns = []ColumnCount{
		{Name: "Date", NonNull: dates},
		{Name: "Timme", NonNull: hours},
		{Name: "Prognos (MW)", NonNull: len(fvals)},
		{Name: "Förbrukning (MW)", NonNull: len(cvals)},
		{Name: "DateTime", NonNull: timestamps},
	}
	s.Forecast = mwStats(fvals)
	s.Consumption = mwStats(cvals)
	return s
}

func mwStats(vals []float64) MWStats {
	if len(vals) == 0 {
		return MWStats{}
	}

	st := MWStats{Count: len(vals), Min: vals[0], Max: vals[0]}
	var sum float64
	for _, v := range vals {
		sum += v
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
	}
	st.Mean = sum / float64(len(vals))
	return st
}

// Render formats the summary as the plain-text report
func (s Summary) Render() string {
	var b strings.Builder

	b.WriteString("SVK Power Data Summary\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "Last updated: %s UTC\n", s.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total records: %d\n", s.TotalRecords)
	fmt.Fprintf(&b, "Unique dates: %d\n", s.UniqueDates)
	if !s.FirstDate.IsZero() {
		fmt.Fprintf(&b, "Date range: %s to %s\n", s.FirstDate.Format(dateFormat), s.LastDate.Format(dateFormat))
	}
	if !s.LatestTimestamp.IsZero() {
		fmt.Fprintf(&b, "Latest data point: %s\n", s.LatestTimestamp.Format(timestampFormat))
	}
	if s.ClockDates > 0 {
		fmt.Fprintf(&b, "Clock-sourced dates: %d records (page date was unreadable, dates are best guesses)\n", s.ClockDates)
	}

	b.WriteString("\nColumns in dataset:\n")
	for _, c := range s.Columns {
		fmt.Fprintf(&b, "  - %s: %d/%d non-null values\n", c.Name, c.NonNull, s.TotalRecords)
	}

	b.WriteString("\nNumeric column statistics:\n")
	cols := []struct {
		name  string
		stats MWStats
	}{
		{"Prognos (MW)", s.Forecast},
		{"Förbrukning (MW)", s.Consumption},
	}
	for _, col := range cols {
		if col.stats.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", col.name)
		fmt.Fprintf(&b, "  Mean: %.2f\n", col.stats.Mean)
		fmt.Fprintf(&b, "  Min: %.2f\n", col.stats.Min)
		fmt.Fprintf(&b, "  Max: %.2f\n", col.stats.Max)
	}

	return b.String()
}

// WriteSummary renders and writes the report
func WriteSummary(path string, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(s.Render()), 0644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
