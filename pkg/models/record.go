package models

import (
	"fmt"
	"time"
)

// Where a record's calendar date came from
const (
	DateSourcePage  = "page"  // read from the dashboard date control
	DateSourceClock = "clock" // wall-clock fallback, date is a guess
)

// PowerRecord represents one hour slot of the SE3 power table
type PowerRecord struct {
	ID            int       `json:"id,omitempty"`
	Date          time.Time `json:"date"`               // calendar date only
	RawDate       string    `json:"raw_date,omitempty"` // displayed date text when it could not be parsed
	Hour          string    `json:"hour"`               // raw label, e.g. "08-09"
	ForecastMW    *float64  `json:"forecast_mw"`        // nil when the cell showed "-"
	ConsumptionMW *float64  `json:"consumption_mw"`     // nil when the cell showed "-"
	Timestamp     time.Time `json:"timestamp"`          // Date + start of Hour; zero if unparseable
	DateSource    string    `json:"date_source"`
}

// Key returns the deduplication key: the derived timestamp when there is
// one, otherwise date plus the raw hour label. A date that never parsed
// keys on its displayed text, so distinct days with exotic date markup
// stay distinct. Records with no identity at all get an empty key and
// are never treated as duplicates of each other.
func (r PowerRecord) Key() string {
	if !r.Timestamp.IsZero() {
		return r.Timestamp.Format("2006-01-02 15:04:05")
	}
	if !r.Date.IsZero() {
		return fmt.Sprintf("%s|%s", r.Date.Format("2006-01-02"), r.Hour)
	}
	if r.RawDate == "" && r.Hour == "" {
		return ""
	}
	return fmt.Sprintf("%s|%s", r.RawDate, r.Hour)
}

// DaySnapshot holds the rows extracted in one pass over the table
type DaySnapshot struct {
	Date    string        `json:"date"` // date string as displayed by the page
	Source  string        `json:"source"`
	Records []PowerRecord `json:"records"`
}
