package dataset

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RosenErik/svk-scraper/pkg/models"
)

// hourRecord builds a complete record the way the extractor would
func hourRecord(date string, hour int, forecast, consumption float64) models.PowerRecord {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	f, c := forecast, consumption
	return models.PowerRecord{
		Date:          d,
		Hour:          fmt.Sprintf("%02d-%02d", hour, hour+1),
		ForecastMW:    &f,
		ConsumptionMW: &c,
		Timestamp:     time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC),
		DateSource:    models.DateSourcePage,
	}
}

func TestFromSnapshotsFlattensAndSorts(t *testing.T) {
	// Days arrive newest first, the way the backward walk collects them
	snapshots := []models.DaySnapshot{
		{
			Date:   "2024-01-16",
			Source: models.DateSourcePage,
			Records: []models.PowerRecord{
				hourRecord("2024-01-16", 0, 9100, 9000),
				hourRecord("2024-01-16", 1, 9200, 9050),
			},
		},
		{
			Date:   "2024-01-15",
			Source: models.DateSourcePage,
			Records: []models.PowerRecord{
				hourRecord("2024-01-15", 0, 9391, 9175),
				hourRecord("2024-01-15", 1, 9400, 9210),
			},
		},
	}

	ds := FromSnapshots(snapshots)

	require.Len(t, ds.Records, 4)
	for i := 1; i < len(ds.Records); i++ {
		assert.False(t, ds.Records[i].Timestamp.Before(ds.Records[i-1].Timestamp),
			"records should be ordered by timestamp")
	}
	assert.Equal(t, "2024-01-15", ds.Records[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-01-16", ds.Records[3].Date.Format("2006-01-02"))
}

func TestMergeLastWriteWins(t *testing.T) {
	existing := &Dataset{Records: []models.PowerRecord{
		hourRecord("2024-01-15", 8, 1000, 900),
	}}
	fresh := &Dataset{Records: []models.PowerRecord{
		hourRecord("2024-01-15", 8, 1100, 950),
	}}

	merged := Merge(existing, fresh)

	require.Len(t, merged.Records, 1)
	require.NotNil(t, merged.Records[0].ForecastMW)
	assert.Equal(t, 1100.0, *merged.Records[0].ForecastMW, "fresh record should replace the old one")
	assert.Equal(t, 950.0, *merged.Records[0].ConsumptionMW)
}

func TestMergeKeepsHistory(t *testing.T) {
	existing := &Dataset{Records: []models.PowerRecord{
		hourRecord("2024-01-14", 0, 9000, 8900),
		hourRecord("2024-01-14", 1, 9100, 8950),
	}}
	fresh := &Dataset{Records: []models.PowerRecord{
		hourRecord("2024-01-14", 1, 9150, 9000), // re-scrape of a known hour
		hourRecord("2024-01-15", 0, 9391, 9175),
	}}

	merged := Merge(existing, fresh)

	require.Len(t, merged.Records, 3)
	assert.GreaterOrEqual(t, len(merged.Records), len(existing.Records), "merging never shrinks history")
	assert.LessOrEqual(t, len(merged.Records), len(existing.Records)+len(fresh.Records))

	// The overlapping hour carries the fresh values
	assert.Equal(t, 9150.0, *merged.Records[1].ForecastMW)
}

func TestMergeEmptySides(t *testing.T) {
	fresh := &Dataset{Records: []models.PowerRecord{
		hourRecord("2024-01-15", 0, 9391, 9175),
	}}

	merged := Merge(nil, fresh)
	require.Empty(t, cmp.Diff(fresh, merged))

	merged = Merge(&Dataset{}, fresh)
	require.Empty(t, cmp.Diff(fresh, merged))

	merged = Merge(fresh, nil)
	require.Empty(t, cmp.Diff(fresh, merged))

	merged = Merge(nil, nil)
	assert.Empty(t, merged.Records)
}

func TestMergeIdempotent(t *testing.T) {
	existing := &Dataset{Records: []models.PowerRecord{
		hourRecord("2024-01-14", 0, 9000, 8900),
		hourRecord("2024-01-14", 1, 9100, 8950),
	}}
	fresh := &Dataset{Records: []models.PowerRecord{
		hourRecord("2024-01-14", 1, 9150, 9000),
		hourRecord("2024-01-15", 0, 9391, 9175),
	}}

	merged := Merge(existing, fresh)
	again := Merge(merged, fresh)

	require.Empty(t, cmp.Diff(merged, again), "re-merging the same records should change nothing")
}

// rawDayRecord builds a record whose displayed date never parsed
func rawDayRecord(rawDate string, hour int, forecast float64) models.PowerRecord {
	f := forecast
	return models.PowerRecord{
		RawDate:    rawDate,
		Hour:       fmt.Sprintf("%02d-%02d", hour, hour+1),
		ForecastMW: &f,
		DateSource: models.DateSourcePage,
	}
}

func TestMergeKeepsDistinctUnparsedDays(t *testing.T) {
	// Two runs over two days whose displayed dates never parsed. Both
	// days must survive the merge instead of collapsing into one.
	run1 := FromSnapshots([]models.DaySnapshot{{
		Date:   "måndag 15 januari",
		Source: models.DateSourcePage,
		Records: []models.PowerRecord{
			rawDayRecord("måndag 15 januari", 8, 1500),
			rawDayRecord("måndag 15 januari", 9, 1600),
		},
	}})
	run2 := FromSnapshots([]models.DaySnapshot{{
		Date:   "söndag 14 januari",
		Source: models.DateSourcePage,
		Records: []models.PowerRecord{
			rawDayRecord("söndag 14 januari", 8, 2500),
			rawDayRecord("söndag 14 januari", 9, 2600),
		},
	}})

	merged := Merge(Merge(nil, run1), run2)

	require.Len(t, merged.Records, 4)
	forecasts := map[string]float64{}
	for _, rec := range merged.Records {
		forecasts[rec.Key()] = *rec.ForecastMW
	}
	assert.Equal(t, 1500.0, forecasts["måndag 15 januari|08-09"])
	assert.Equal(t, 1600.0, forecasts["måndag 15 januari|09-10"])
	assert.Equal(t, 2500.0, forecasts["söndag 14 januari|08-09"])
	assert.Equal(t, 2600.0, forecasts["söndag 14 januari|09-10"])

	// A re-scrape of one of those days still replaces instead of duplicating
	rescrape := FromSnapshots([]models.DaySnapshot{{
		Date:    "måndag 15 januari",
		Source:  models.DateSourcePage,
		Records: []models.PowerRecord{rawDayRecord("måndag 15 januari", 8, 1550)},
	}})
	merged = Merge(merged, rescrape)

	require.Len(t, merged.Records, 4)
	for _, rec := range merged.Records {
		if rec.Key() == "måndag 15 januari|08-09" {
			assert.Equal(t, 1550.0, *rec.ForecastMW)
		}
	}
}

func TestMergeKeylessRecordsAllKept(t *testing.T) {
	// Records with no date, hour or timestamp cannot be told apart, so
	// none of them may shadow another
	f1, f2 := 100.0, 200.0
	existing := &Dataset{Records: []models.PowerRecord{
		{ForecastMW: &f1, DateSource: models.DateSourceClock},
	}}
	fresh := &Dataset{Records: []models.PowerRecord{
		{ForecastMW: &f2, DateSource: models.DateSourceClock},
	}}

	merged := Merge(existing, fresh)

	require.Len(t, merged.Records, 2)
}

func TestSortLeavesUntimestampedInPlace(t *testing.T) {
	odd := models.PowerRecord{Hour: "??", DateSource: models.DateSourcePage}
	snapshots := []models.DaySnapshot{{
		Date:   "2024-01-16",
		Source: models.DateSourcePage,
		Records: []models.PowerRecord{
			hourRecord("2024-01-16", 9, 9200, 9100),
			odd,
			hourRecord("2024-01-15", 8, 9000, 8900),
		},
	}}

	ds := FromSnapshots(snapshots)

	require.Len(t, ds.Records, 3)
	assert.Equal(t, "2024-01-15", ds.Records[0].Date.Format("2006-01-02"))
	assert.Equal(t, "??", ds.Records[1].Hour, "record without a timestamp keeps its position")
	assert.Equal(t, "2024-01-16", ds.Records[2].Date.Format("2006-01-02"))
}

func TestEffectiveDays(t *testing.T) {
	now := time.Date(2024, time.January, 20, 12, 0, 0, 0, time.UTC)

	withLatest := func(date string) *Dataset {
		return &Dataset{Records: []models.PowerRecord{hourRecord(date, 0, 9000, 8900)}}
	}

	cases := []struct {
		name      string
		existing  *Dataset
		requested int
		expect    int
	}{
		{"no history pulls a week", nil, 3, 7},
		{"no history keeps larger request", nil, 10, 10},
		{"empty dataset pulls a week", &Dataset{}, 3, 7},
		{"fresh history keeps request", withLatest("2024-01-19"), 3, 3},
		{"week-old history keeps request", withLatest("2024-01-13"), 3, 3},
		{"stale history closes the gap", withLatest("2024-01-10"), 3, 12},
		{"barely stale history", withLatest("2024-01-12"), 3, 10},
		{"very stale history is capped", withLatest("2023-12-01"), 3, 30},
		{"dateless records keep request", &Dataset{Records: []models.PowerRecord{{Hour: "00-01"}}}, 3, 3},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expect, EffectiveDays(test.existing, test.requested, now))
		})
	}
}

func TestDatasetStats(t *testing.T) {
	ds := &Dataset{Records: []models.PowerRecord{
		hourRecord("2024-01-14", 23, 9000, 8900),
		hourRecord("2024-01-15", 0, 9391, 9175),
		hourRecord("2024-01-15", 1, 9400, 9210),
	}}

	assert.Equal(t, 2, ds.UniqueDates())
	assert.Equal(t, "2024-01-15", ds.LatestDate().Format("2006-01-02"))

	first, last := ds.DateRange()
	assert.Equal(t, "2024-01-14", first.Format("2006-01-02"))
	assert.Equal(t, "2024-01-15", last.Format("2006-01-02"))

	assert.Equal(t, time.Date(2024, time.January, 15, 1, 0, 0, 0, time.UTC), ds.LatestTimestamp())
}
