package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RosenErik/svk-scraper/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(date string, hour int, forecast, consumption float64) *models.PowerRecord {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	f, c := forecast, consumption
	return &models.PowerRecord{
		Date:          d,
		Hour:          fmt.Sprintf("%02d-%02d", hour, hour+1),
		ForecastMW:    &f,
		ConsumptionMW: &c,
		Timestamp:     time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC),
		DateSource:    models.DateSourcePage,
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestStore(t)

	wrote, err := s.Upsert(record("2024-01-15", 8, 9391, 9175))
	require.NoError(t, err)
	assert.True(t, wrote)

	rec, err := s.Get(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), "08-09")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Greater(t, rec.ID, 0)
	assert.Equal(t, "08-09", rec.Hour)
	assert.Equal(t, 9391.0, *rec.ForecastMW)
	assert.Equal(t, 9175.0, *rec.ConsumptionMW)
	assert.Equal(t, time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC), rec.Timestamp)
	assert.Equal(t, models.DateSourcePage, rec.DateSource)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Get(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), "08-09")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpsertReplacesSlot(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Upsert(record("2024-01-15", 8, 9391, 9175))
	require.NoError(t, err)

	wrote, err := s.Upsert(record("2024-01-15", 8, 9400, 9200))
	require.NoError(t, err)
	assert.True(t, wrote)

	rec, err := s.Get(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), "08-09")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 9400.0, *rec.ForecastMW)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "same slot should not create a second row")
}

func TestUpsertUnchangedLeavesPublishedAlone(t *testing.T) {
	s := newTestStore(t)

	rec := record("2024-01-15", 8, 9391, 9175)
	_, err := s.Upsert(rec)
	require.NoError(t, err)

	stored, err := s.Get(rec.Date, rec.Hour)
	require.NoError(t, err)
	require.NoError(t, s.MarkPublished(stored.ID))

	// Same values again, as a rerun over an already-scraped day produces
	wrote, err := s.Upsert(record("2024-01-15", 8, 9391, 9175))
	require.NoError(t, err)
	assert.False(t, wrote)

	unpublished, err := s.ListUnpublished()
	require.NoError(t, err)
	assert.Empty(t, unpublished, "an unchanged row must not be queued again")
}

func TestUpsertChangedQueuesForPublish(t *testing.T) {
	s := newTestStore(t)

	rec := record("2024-01-15", 8, 9391, 9175)
	_, err := s.Upsert(rec)
	require.NoError(t, err)

	stored, err := s.Get(rec.Date, rec.Hour)
	require.NoError(t, err)
	require.NoError(t, s.MarkPublished(stored.ID))

	wrote, err := s.Upsert(record("2024-01-15", 8, 9391, 9250))
	require.NoError(t, err)
	assert.True(t, wrote)

	unpublished, err := s.ListUnpublished()
	require.NoError(t, err)
	require.Len(t, unpublished, 1)
	assert.Equal(t, 9250.0, *unpublished[0].ConsumptionMW)
}

func TestUpsertNullValues(t *testing.T) {
	s := newTestStore(t)

	rec := record("2024-01-15", 8, 9391, 0)
	rec.ConsumptionMW = nil
	_, err := s.Upsert(rec)
	require.NoError(t, err)

	stored, err := s.Get(rec.Date, rec.Hour)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.ConsumptionMW)

	// The value arriving later counts as a change
	wrote, err := s.Upsert(record("2024-01-15", 8, 9391, 9175))
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestUpsertMetadataChangeQueuesForPublish(t *testing.T) {
	s := newTestStore(t)

	clock := record("2024-01-15", 8, 9391, 9175)
	clock.Timestamp = time.Time{}
	clock.DateSource = models.DateSourceClock
	_, err := s.Upsert(clock)
	require.NoError(t, err)

	stored, err := s.Get(clock.Date, clock.Hour)
	require.NoError(t, err)
	require.NoError(t, s.MarkPublished(stored.ID))

	// Same measurements, but a later run read the date off the page
	wrote, err := s.Upsert(record("2024-01-15", 8, 9391, 9175))
	require.NoError(t, err)
	assert.True(t, wrote, "corrected date metadata counts as a change")

	stored, err = s.Get(clock.Date, clock.Hour)
	require.NoError(t, err)
	assert.Equal(t, models.DateSourcePage, stored.DateSource)
	assert.Equal(t, time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC), stored.Timestamp)

	unpublished, err := s.ListUnpublished()
	require.NoError(t, err)
	require.Len(t, unpublished, 1)
}

func TestUpsertKeepsUnparsedDatesApart(t *testing.T) {
	s := newTestStore(t)

	f1, f2 := 1500.0, 2500.0
	_, err := s.Upsert(&models.PowerRecord{
		RawDate: "måndag 15 januari", Hour: "08-09",
		ForecastMW: &f1, DateSource: models.DateSourcePage,
	})
	require.NoError(t, err)
	_, err = s.Upsert(&models.PowerRecord{
		RawDate: "söndag 14 januari", Hour: "08-09",
		ForecastMW: &f2, DateSource: models.DateSourcePage,
	})
	require.NoError(t, err)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count, "days with unparsed dates get separate slots")

	records, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.True(t, rec.Date.IsZero())
		assert.NotEmpty(t, rec.RawDate, "the displayed text survives the round trip")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)

	for _, rec := range []*models.PowerRecord{
		record("2024-01-14", 23, 9000, 8900),
		record("2024-01-15", 0, 9391, 9175),
		record("2024-01-15", 1, 9400, 9210),
	} {
		_, err := s.Upsert(rec)
		require.NoError(t, err)
	}

	records, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "01-02", records[0].Hour)
	assert.Equal(t, "2024-01-14", records[2].Date.Format("2006-01-02"))

	records, err = s.List(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestListByDate(t *testing.T) {
	s := newTestStore(t)

	for _, rec := range []*models.PowerRecord{
		record("2024-01-15", 9, 9400, 9210),
		record("2024-01-15", 8, 9391, 9175),
		record("2024-01-14", 23, 9000, 8900),
	} {
		_, err := s.Upsert(rec)
		require.NoError(t, err)
	}

	records, err := s.ListByDate(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "08-09", records[0].Hour, "hours come back in day order")
	assert.Equal(t, "09-10", records[1].Hour)
}

func TestLatestTimestamp(t *testing.T) {
	s := newTestStore(t)

	latest, err := s.LatestTimestamp()
	require.NoError(t, err)
	assert.True(t, latest.IsZero(), "empty store has no latest data point")

	for _, rec := range []*models.PowerRecord{
		record("2024-01-15", 8, 9391, 9175),
		record("2024-01-15", 9, 9400, 9210),
		record("2024-01-14", 23, 9000, 8900),
	} {
		_, err := s.Upsert(rec)
		require.NoError(t, err)
	}

	latest, err = s.LatestTimestamp()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC), latest)
}
