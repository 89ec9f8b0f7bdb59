package reading

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"
)

// insertChunkSize bounds the rows per multi-row INSERT. Four bind
// variables per row keeps chunks well under SQLite's variable limit.
const insertChunkSize = 200

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed reading store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert persists a single reading.
func (s *SQLiteStore) Insert(ctx context.Context, r Reading) (*Reading, error) {
	if err := validate(r); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO sensor_readings (device_sensor_id, time, value, created_at)
		VALUES (?, ?, ?, ?)`,
		r.DeviceSensorID,
		r.Time.UTC().Format(time.RFC3339Nano),
		r.Value,
		now.Format(time.RFC3339),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return nil, fmt.Errorf("inserting reading for mapping %d: %w", r.DeviceSensorID, ErrInvalidMapping)
		}
		return nil, fmt.Errorf("inserting reading for mapping %d: %w", r.DeviceSensorID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading insert id: %w", err)
	}

	stored := r
	stored.ID = id
	stored.Time = r.Time.UTC()
	stored.CreatedAt = now
	return &stored, nil
}

// InsertBatch persists readings using chunked multi-row inserts.
func (s *SQLiteStore) InsertBatch(ctx context.Context, readings []Reading) (map[int]error, error) {
	failed := make(map[int]error)
	if len(readings) == 0 {
		return failed, nil
	}

	for start := 0; start < len(readings); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(readings) {
			end = len(readings)
		}
		chunk := readings[start:end]

		if err := s.insertChunk(ctx, chunk); err != nil {
			// The chunk write is all-or-nothing, so retry its rows
			// individually to isolate the offender(s).
			for i, r := range chunk {
				if _, rowErr := s.Insert(ctx, r); rowErr != nil {
					failed[start+i] = rowErr
				}
			}
		}
	}

	return failed, nil
}

// insertChunk writes one chunk as a single multi-row INSERT.
func (s *SQLiteStore) insertChunk(ctx context.Context, chunk []Reading) error {
	now := time.Now().UTC().Format(time.RFC3339)

	rows := make([]string, len(chunk))
	args := make([]interface{}, 0, len(chunk)*4)
	for i, r := range chunk {
		if err := validate(r); err != nil {
			return err
		}
		rows[i] = "(?, ?, ?, ?)"
		args = append(args,
			r.DeviceSensorID,
			r.Time.UTC().Format(time.RFC3339Nano),
			r.Value,
			now,
		)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sensor_readings (device_sensor_id, time, value, created_at)
		VALUES `+strings.Join(rows, ", "),
		args...,
	)
	if err != nil {
		return fmt.Errorf("inserting reading chunk: %w", err)
	}
	return nil
}

// ListByDevice returns the device's readings, newest first.
func (s *SQLiteStore) ListByDevice(ctx context.Context, deviceID int64, limit int) ([]Detail, error) {
	query := `
		SELECT r.id, r.device_sensor_id, r.time, r.value, r.created_at, se.type, se.unit
		FROM sensor_readings r
		JOIN device_sensors ds ON ds.id = r.device_sensor_id
		JOIN sensors se ON se.id = ds.sensor_id
		WHERE ds.device_id = ?
		ORDER BY r.time DESC, r.id DESC`
	args := []interface{}{deviceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings for device %d: %w", deviceID, err)
	}
	defer rows.Close()

	return scanDetails(rows)
}

// LatestByDevice returns the most recent reading per mapping.
func (s *SQLiteStore) LatestByDevice(ctx context.Context, deviceID int64) ([]Detail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.device_sensor_id, r.time, r.value, r.created_at, se.type, se.unit
		FROM sensor_readings r
		JOIN device_sensors ds ON ds.id = r.device_sensor_id
		JOIN sensors se ON se.id = ds.sensor_id
		WHERE ds.device_id = ?
		AND r.id = (
			SELECT r2.id FROM sensor_readings r2
			WHERE r2.device_sensor_id = r.device_sensor_id
			ORDER BY r2.time DESC, r2.id DESC
			LIMIT 1
		)
		ORDER BY r.device_sensor_id`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying latest readings for device %d: %w", deviceID, err)
	}
	defer rows.Close()

	return scanDetails(rows)
}

// DeleteByMapping removes all readings for a mapping.
func (s *SQLiteStore) DeleteByMapping(ctx context.Context, mappingID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sensor_readings WHERE device_sensor_id = ?", mappingID,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting readings for mapping %d: %w", mappingID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking delete result: %w", err)
	}
	return affected, nil
}

// PruneOlderThan removes readings older than the given age.
func (s *SQLiteStore) PruneOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sensor_readings WHERE time < ?", cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning readings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking prune result: %w", err)
	}
	return affected, nil
}

func scanDetails(rows *sql.Rows) ([]Detail, error) {
	details := []Detail{}
	for rows.Next() {
		var d Detail
		var readingTime, createdAt string
		var unit sql.NullString
		if err := rows.Scan(&d.ID, &d.DeviceSensorID, &readingTime, &d.Value, &createdAt, &d.SensorType, &unit); err != nil {
			return nil, fmt.Errorf("scanning reading row: %w", err)
		}
		d.Time = parseTime(readingTime)
		d.CreatedAt = parseTime(createdAt)
		d.SensorUnit = unit.String
		details = append(details, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reading rows: %w", err)
	}
	return details, nil
}

func validate(r Reading) error {
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidValue, r.Value)
	}
	return nil
}

// parseTime parses timestamps written by this package (RFC3339, with or
// without fractional seconds). The format is controlled, so parse
// failures yield the zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s) //nolint:errcheck // Format is controlled
	return t
}

// isForeignKeyError detects SQLite foreign key violations.
func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
