package dataset

import (
	"sort"
	"time"

	"github.com/RosenErik/svk-scraper/pkg/models"
)

// Dataset is the accumulated, deduplicated history of power records.
// It only ever grows: merging never drops a key that was present before.
type Dataset struct {
	Records []models.PowerRecord
}

// FromSnapshots flattens collected day snapshots into a dataset in
// collection order, then orders it by timestamp
func FromSnapshots(snapshots []models.DaySnapshot) *Dataset {
	var records []models.PowerRecord
	for _, snap := range snapshots {
		records = append(records, snap.Records...)
	}
	sortByTimestamp(records)
	return &Dataset{Records: records}
}

// Merge combines history with newly collected records. On key collision
// the newer record wins, so a re-scrape of a day replaces its rows. An
// empty side passes the other through unchanged.
func Merge(existing, fresh *Dataset) *Dataset {
	if existing == nil || len(existing.Records) == 0 {
		return &Dataset{Records: copyRecords(fresh)}
	}
	if fresh == nil || len(fresh.Records) == 0 {
		return &Dataset{Records: copyRecords(existing)}
	}

	combined := make([]models.PowerRecord, 0, len(existing.Records)+len(fresh.Records))
	combined = append(combined, existing.Records...)
	combined = append(combined, fresh.Records...)

	// Walk backward so the last occurrence of each key survives.
	// Records with no key material are never deduplicated.
	keep := make([]bool, len(combined))
	seen := make(map[string]bool, len(combined))
	for i := len(combined) - 1; i >= 0; i-- {
		key := combined[i].Key()
		if key == "" {
			keep[i] = true
			continue
		}
		if !seen[key] {
			keep[i] = true
			seen[key] = true
		}
	}

	records := make([]models.PowerRecord, 0, len(combined))
	for i, r := range combined {
		if keep[i] {
			records = append(records, r)
		}
	}

	sortByTimestamp(records)
	return &Dataset{Records: records}
}

// sortByTimestamp orders records by their derived timestamp. Records
// without one keep their original positions.
func sortByTimestamp(records []models.PowerRecord) {
	idx := make([]int, 0, len(records))
	sortable := make([]models.PowerRecord, 0, len(records))
	for i, r := range records {
		if !r.Timestamp.IsZero() {
			idx = append(idx, i)
			sortable = append(sortable, r)
		}
	}

	sort.SliceStable(sortable, func(a, b int) bool {
		return sortable[a].Timestamp.Before(sortable[b].Timestamp)
	})

	for n, i := range idx {
		records[i] = sortable[n]
	}
}

func copyRecords(ds *Dataset) []models.PowerRecord {
	if ds == nil || len(ds.Records) == 0 {
		return nil
	}
	out := make([]models.PowerRecord, len(ds.Records))
	copy(out, ds.Records)
	return out
}

// EffectiveDays decides how many days a run should walk back. A fresh
// start pulls at least a week; history more than a week stale pulls
// enough to close the gap plus two days of overlap, capped at 30.
func EffectiveDays(existing *Dataset, requested int, now time.Time) int {
	if existing == nil || len(existing.Records) == 0 {
		if requested > 7 {
			return requested
		}
		return 7
	}

	latest := existing.LatestDate()
	if latest.IsZero() {
		return requested
	}

	stale := int(now.Sub(latest).Hours() / 24)
	if stale > 7 {
		if stale+2 > 30 {
			return 30
		}
		return stale + 2
	}
	return requested
}

// LatestDate returns the most recent calendar date in the dataset, or
// the zero time when no record carries one
func (d *Dataset) LatestDate() time.Time {
	var latest time.Time
	for _, r := range d.Records {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	return latest
}

// LatestTimestamp returns the most recent derived timestamp, or the
// zero time when no record carries one
func (d *Dataset) LatestTimestamp() time.Time {
	var latest time.Time
	for _, r := range d.Records {
		if r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}
	return latest
}

// DateRange returns the earliest and latest calendar dates present
func (d *Dataset) DateRange() (time.Time, time.Time) {
	var first, last time.Time
	for _, r := range d.Records {
		if r.Date.IsZero() {
			continue
		}
		if first.IsZero() || r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return first, last
}

// UniqueDates counts the distinct calendar dates present
func (d *Dataset) UniqueDates() int {
	dates := make(map[string]bool)
	for _, r := range d.Records {
		if !r.Date.IsZero() {
			dates[r.Date.Format("2006-01-02")] = true
		}
	}
	return len(dates)
}
