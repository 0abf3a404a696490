package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/RosenErik/svk-scraper/pkg/models"
)

// Store wraps the database connection
type Store struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// initSchema creates the necessary tables
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS power_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		hour TEXT NOT NULL,
		forecast_mw REAL,
		consumption_mw REAL,
		timestamp TEXT,
		date_source TEXT NOT NULL DEFAULT 'page',
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(date, hour)
	);
	CREATE INDEX IF NOT EXISTS idx_power_date ON power_records(date);
	CREATE INDEX IF NOT EXISTS idx_power_timestamp ON power_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_power_published ON power_records(published);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// Upsert stores a record, replacing the values for its (date, hour)
// slot. Reports whether anything was written; an unchanged row is left
// alone so it is not queued for re-publishing. A changed timestamp or
// date source counts as a change like the measurements do.
func (s *Store) Upsert(rec *models.PowerRecord) (bool, error) {
	query := `
	INSERT INTO power_records (date, hour, forecast_mw, consumption_mw, timestamp, date_source, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(date, hour) DO UPDATE SET
		forecast_mw = excluded.forecast_mw,
		consumption_mw = excluded.consumption_mw,
		timestamp = excluded.timestamp,
		date_source = excluded.date_source,
		published = 0
	WHERE forecast_mw IS NOT excluded.forecast_mw
	   OR consumption_mw IS NOT excluded.consumption_mw
	   OR timestamp IS NOT excluded.timestamp
	   OR date_source IS NOT excluded.date_source
	`

	var timestampStr string
	if !rec.Timestamp.IsZero() {
		timestampStr = rec.Timestamp.Format("2006-01-02 15:04:05")
	}
	createdAt := time.Now().UTC().Format(time.RFC3339)

	res, err := s.conn.Exec(query,
		dateKey(rec), rec.Hour,
		nullMW(rec.ForecastMW), nullMW(rec.ConsumptionMW),
		timestampStr, rec.DateSource, createdAt)
	if err != nil {
		return false, fmt.Errorf("upserting power record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking upsert result: %w", err)
	}
	return n > 0, nil
}

// Get retrieves the record for a specific date and hour slot
func (s *Store) Get(date time.Time, hour string) (*models.PowerRecord, error) {
	query := `
	SELECT id, date, hour, forecast_mw, consumption_mw, timestamp, date_source
	FROM power_records
	WHERE date = ? AND hour = ?
	`

	row := s.conn.QueryRow(query, date.Format("2006-01-02"), hour)

	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying power record: %w", err)
	}
	return rec, nil
}

// List retrieves records newest-first. limit <= 0 means everything.
func (s *Store) List(limit int) ([]models.PowerRecord, error) {
	query := `
	SELECT id, date, hour, forecast_mw, consumption_mw, timestamp, date_source
	FROM power_records
	ORDER BY date DESC, hour DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying power records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListByDate retrieves all records for one calendar date, in hour order
func (s *Store) ListByDate(date time.Time) ([]models.PowerRecord, error) {
	query := `
	SELECT id, date, hour, forecast_mw, consumption_mw, timestamp, date_source
	FROM power_records
	WHERE date = ?
	ORDER BY hour ASC
	`

	rows, err := s.conn.Query(query, date.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("querying power records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListUnpublished retrieves all records not yet pushed downstream,
// oldest first so consumers see them in time order
func (s *Store) ListUnpublished() ([]models.PowerRecord, error) {
	query := `
	SELECT id, date, hour, forecast_mw, consumption_mw, timestamp, date_source
	FROM power_records
	WHERE published = 0
	ORDER BY date ASC, hour ASC
	`

	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying unpublished records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// MarkPublished marks a record as published
func (s *Store) MarkPublished(id int) error {
	query := `UPDATE power_records SET published = 1 WHERE id = ?`
	if _, err := s.conn.Exec(query, id); err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}

// Count returns the number of stored records
func (s *Store) Count() (int, error) {
	var n int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM power_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// LatestTimestamp returns the most recent record timestamp, or the zero
// time when the store is empty
func (s *Store) LatestTimestamp() (time.Time, error) {
	var ts sql.NullString
	err := s.conn.QueryRow(`SELECT MAX(timestamp) FROM power_records WHERE timestamp != ''`).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("querying latest timestamp: %w", err)
	}
	if !ts.Valid || ts.String == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse("2006-01-02 15:04:05", ts.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return t, nil
}

func collectRecords(rows *sql.Rows) ([]models.PowerRecord, error) {
	var results []models.PowerRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

func scanRecord(scan func(...any) error) (*models.PowerRecord, error) {
	var rec models.PowerRecord
	var dateStr string
	var forecast, consumption sql.NullFloat64
	var timestampStr sql.NullString

	if err := scan(&rec.ID, &dateStr, &rec.Hour, &forecast, &consumption, &timestampStr, &rec.DateSource); err != nil {
		return nil, err
	}

	if date, err := time.Parse("2006-01-02", dateStr); err == nil {
		rec.Date = date
	} else {
		rec.RawDate = dateStr
	}

	if forecast.Valid {
		v := forecast.Float64
		rec.ForecastMW = &v
	}
	if consumption.Valid {
		v := consumption.Float64
		rec.ConsumptionMW = &v
	}
	if timestampStr.Valid && timestampStr.String != "" {
		ts, err := time.Parse("2006-01-02 15:04:05", timestampStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		rec.Timestamp = ts
	}

	return &rec, nil
}

// dateKey renders the date column, falling back to the displayed text
// for dates that never parsed so such days occupy separate slots
func dateKey(rec *models.PowerRecord) string {
	if rec.Date.IsZero() {
		return rec.RawDate
	}
	return rec.Date.Format("2006-01-02")
}

func nullMW(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
