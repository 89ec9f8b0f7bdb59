package topology

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/telemetry-core/internal/dedup"
)

// SQLiteStore implements Store using SQLite.
//
// Sensor and mapping registration go through dedup engines backed by the
// schema's UNIQUE constraints, so concurrent registrations of the same
// identity converge on a single row.
type SQLiteStore struct {
	db       *sql.DB
	sensors  *dedup.Engine[Sensor]
	mappings *dedup.Engine[Mapping]
}

// NewSQLiteStore creates a new SQLite-backed topology store.
// The db parameter should be an open SQLite connection with foreign keys
// enabled (cascading deletes depend on it).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:       db,
		sensors:  dedup.New[Sensor](&sensorStore{db: db}),
		mappings: dedup.New[Mapping](&mappingStore{db: db}),
	}
}

// RegisterDevice creates a new device row.
func (s *SQLiteStore) RegisterDevice(ctx context.Context, name, deviceType string) (*Device, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	if strings.TrimSpace(deviceType) == "" {
		return nil, ErrInvalidType
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (name, type, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		name,
		deviceType,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading device id: %w", err)
	}

	return &Device{
		ID:        id,
		Name:      name,
		Type:      deviceType,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RegisterSensor creates a sensor unless one with the same type exists.
func (s *SQLiteStore) RegisterSensor(ctx context.Context, sensorType, unit string) (*Sensor, bool, error) {
	if strings.TrimSpace(sensorType) == "" {
		return nil, false, ErrInvalidType
	}

	result, err := s.sensors.CreateOrSkip(ctx, Sensor{Type: sensorType, Unit: unit})
	if err != nil {
		return nil, false, fmt.Errorf("registering sensor: %w", err)
	}

	sensor := result.Record
	return &sensor, result.Added, nil
}

// MapSensorToDevice creates a mapping unless the pair already exists.
func (s *SQLiteStore) MapSensorToDevice(ctx context.Context, deviceID, sensorID int64) (*Mapping, bool, error) {
	// Existence checks give callers precise errors. The FK constraints
	// still back this up if either row vanishes before the insert.
	if err := s.requireDevice(ctx, deviceID); err != nil {
		return nil, false, err
	}
	exists, err := s.sensorExists(ctx, sensorID)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, ErrSensorNotFound
	}

	result, err := s.mappings.CreateOrSkip(ctx, Mapping{DeviceID: deviceID, SensorID: sensorID})
	if err != nil {
		return nil, false, fmt.Errorf("mapping sensor %d to device %d: %w", sensorID, deviceID, err)
	}

	mapping := result.Record
	return &mapping, result.Added, nil
}

// AttachSensors registers the given sensors and maps them to the device.
//
// One batched sensor pass and one batched mapping pass, regardless of
// input size. A sensor that fails to register blocks only its own
// mapping; the rest of the batch proceeds.
func (s *SQLiteStore) AttachSensors(ctx context.Context, deviceID int64, inputs []SensorInput) ([]AttachResult, error) {
	if err := s.requireDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	results := make([]AttachResult, len(inputs))
	if len(inputs) == 0 {
		return results, nil
	}

	candidates := make([]Sensor, len(inputs))
	for i, in := range inputs {
		candidates[i] = Sensor{Type: in.Type, Unit: in.Unit}
	}

	sensorResults, err := s.sensors.CreateOrSkipMany(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("registering sensors: %w", err)
	}

	// Map only the sensors that registered; remember which input each
	// mapping candidate belongs to.
	var mappingCandidates []Mapping
	var mappingIndex []int
	for i, sr := range sensorResults {
		results[i].Sensor = sr.Record
		results[i].SensorCreated = sr.Added
		results[i].SensorReason = sr.Reason
		if sr.Err != nil {
			results[i].Err = sr.Err
			continue
		}
		mappingCandidates = append(mappingCandidates, Mapping{DeviceID: deviceID, SensorID: sr.Record.ID})
		mappingIndex = append(mappingIndex, i)
	}

	mappingResults, err := s.mappings.CreateOrSkipMany(ctx, mappingCandidates)
	if err != nil {
		return nil, fmt.Errorf("mapping sensors: %w", err)
	}

	for j, mr := range mappingResults {
		i := mappingIndex[j]
		results[i].Mapping = mr.Record
		results[i].MappingCreated = mr.Added
		results[i].MappingReason = mr.Reason
		if mr.Err != nil {
			results[i].Err = mr.Err
		}
	}

	return results, nil
}

// MappingsForDevice returns the device's mappings with sensor details.
func (s *SQLiteStore) MappingsForDevice(ctx context.Context, deviceID int64) ([]MappingDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ds.id, ds.device_id, ds.sensor_id, ds.created_at, ds.updated_at,
			se.type, se.unit
		FROM device_sensors ds
		JOIN sensors se ON se.id = ds.sensor_id
		WHERE ds.device_id = ?
		ORDER BY ds.id`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying mappings for device %d: %w", deviceID, err)
	}
	defer rows.Close()

	details := []MappingDetail{}
	for rows.Next() {
		var d MappingDetail
		var createdAt, updatedAt string
		var unit sql.NullString
		if err := rows.Scan(&d.ID, &d.DeviceID, &d.SensorID, &createdAt, &updatedAt, &d.SensorType, &unit); err != nil {
			return nil, fmt.Errorf("scanning mapping row: %w", err)
		}
		d.CreatedAt = parseTime(createdAt)
		d.UpdatedAt = parseTime(updatedAt)
		d.SensorUnit = unit.String
		details = append(details, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mapping rows: %w", err)
	}
	return details, nil
}

// MappingExists reports whether a mapping ID exists.
func (s *SQLiteStore) MappingExists(ctx context.Context, mappingID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM device_sensors WHERE id = ?", mappingID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking mapping %d: %w", mappingID, err)
	}
	return true, nil
}

// GetMappingDetail retrieves one mapping with sensor details.
func (s *SQLiteStore) GetMappingDetail(ctx context.Context, mappingID int64) (*MappingDetail, error) {
	var d MappingDetail
	var createdAt, updatedAt string
	var unit sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT ds.id, ds.device_id, ds.sensor_id, ds.created_at, ds.updated_at,
			se.type, se.unit
		FROM device_sensors ds
		JOIN sensors se ON se.id = ds.sensor_id
		WHERE ds.id = ?`,
		mappingID,
	).Scan(&d.ID, &d.DeviceID, &d.SensorID, &createdAt, &updatedAt, &d.SensorType, &unit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting mapping %d: %w", mappingID, err)
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	d.SensorUnit = unit.String
	return &d, nil
}

// GetDevice retrieves a device by ID.
func (s *SQLiteStore) GetDevice(ctx context.Context, id int64) (*Device, error) {
	var d Device
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, type, created_at, updated_at FROM devices WHERE id = ?", id,
	).Scan(&d.ID, &d.Name, &d.Type, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting device %d: %w", id, err)
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// ListDevices retrieves all devices ordered by ID.
func (s *SQLiteStore) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, type, created_at, updated_at FROM devices ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		var d Device
		var createdAt, updatedAt string
		if err := rows.Scan(&d.ID, &d.Name, &d.Type, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		d.CreatedAt = parseTime(createdAt)
		d.UpdatedAt = parseTime(updatedAt)
		devices = append(devices, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// ListSensors retrieves all sensors ordered by ID.
func (s *SQLiteStore) ListSensors(ctx context.Context) ([]Sensor, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, type, unit, created_at, updated_at FROM sensors ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("querying sensors: %w", err)
	}
	defer rows.Close()

	sensors := []Sensor{}
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, sensor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensor rows: %w", err)
	}
	return sensors, nil
}

// ListMappings retrieves all mappings ordered by ID.
func (s *SQLiteStore) ListMappings(ctx context.Context) ([]Mapping, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, device_id, sensor_id, created_at, updated_at FROM device_sensors ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer rows.Close()

	mappings := []Mapping{}
	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mapping rows: %w", err)
	}
	return mappings, nil
}

// DeleteDevice removes a device; mappings and readings cascade.
func (s *SQLiteStore) DeleteDevice(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "devices", id, ErrDeviceNotFound)
}

// DeleteSensor removes a sensor; mappings and readings cascade.
func (s *SQLiteStore) DeleteSensor(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "sensors", id, ErrSensorNotFound)
}

// DeleteMapping removes a mapping; its readings cascade.
func (s *SQLiteStore) DeleteMapping(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "device_sensors", id, ErrMappingNotFound)
}

// deleteRow deletes one row by ID, returning notFound when nothing matched.
func (s *SQLiteStore) deleteRow(ctx context.Context, table string, id int64, notFound error) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

// requireDevice returns ErrDeviceNotFound unless the device exists.
func (s *SQLiteStore) requireDevice(ctx context.Context, deviceID int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM devices WHERE id = ?", deviceID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDeviceNotFound
	}
	if err != nil {
		return fmt.Errorf("checking device %d: %w", deviceID, err)
	}
	return nil
}

func (s *SQLiteStore) sensorExists(ctx context.Context, sensorID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM sensors WHERE id = ?", sensorID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking sensor %d: %w", sensorID, err)
	}
	return true, nil
}

// =============================================================================
// Dedup store adapters
// =============================================================================

// sensorStore adapts the sensors table to dedup.Store[Sensor].
// Identity: the type column (UNIQUE index idx_sensors_type).
type sensorStore struct {
	db *sql.DB
}

func (s *sensorStore) FindByIdentity(ctx context.Context, candidate Sensor) (Sensor, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, type, unit, created_at, updated_at FROM sensors WHERE type = ?",
		candidate.Type,
	)
	sensor, err := scanSensor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Sensor{}, false, nil
	}
	if err != nil {
		return Sensor{}, false, err
	}
	return sensor, true, nil
}

func (s *sensorStore) FindByIdentityBatch(ctx context.Context, candidates []Sensor) (map[int]Sensor, error) {
	if len(candidates) == 0 {
		return map[int]Sensor{}, nil
	}

	placeholders := make([]string, len(candidates))
	args := make([]interface{}, len(candidates))
	for i, c := range candidates {
		placeholders[i] = "?"
		args[i] = c.Type
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, type, unit, created_at, updated_at FROM sensors WHERE type IN ("+
			strings.Join(placeholders, ", ")+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sensors by type: %w", err)
	}
	defer rows.Close()

	byType := make(map[string]Sensor)
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		byType[sensor.Type] = sensor
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensor rows: %w", err)
	}

	found := make(map[int]Sensor)
	for i, c := range candidates {
		if sensor, ok := byType[c.Type]; ok {
			found[i] = sensor
		}
	}
	return found, nil
}

func (s *sensorStore) Insert(ctx context.Context, candidate Sensor) (Sensor, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO sensors (type, unit, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		candidate.Type,
		nullableString(candidate.Unit),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return Sensor{}, fmt.Errorf("inserting sensor %q: %w", candidate.Type, dedup.ErrDuplicate)
		}
		return Sensor{}, fmt.Errorf("inserting sensor %q: %w", candidate.Type, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Sensor{}, fmt.Errorf("reading sensor id: %w", err)
	}

	return Sensor{
		ID:        id,
		Type:      candidate.Type,
		Unit:      candidate.Unit,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// mappingStore adapts the device_sensors table to dedup.Store[Mapping].
// Identity: the (device_id, sensor_id) pair (UNIQUE index
// idx_device_sensors_pair).
type mappingStore struct {
	db *sql.DB
}

func (s *mappingStore) FindByIdentity(ctx context.Context, candidate Mapping) (Mapping, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, sensor_id, created_at, updated_at
		FROM device_sensors
		WHERE device_id = ? AND sensor_id = ?`,
		candidate.DeviceID, candidate.SensorID,
	)
	mapping, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Mapping{}, false, nil
	}
	if err != nil {
		return Mapping{}, false, err
	}
	return mapping, true, nil
}

func (s *mappingStore) FindByIdentityBatch(ctx context.Context, candidates []Mapping) (map[int]Mapping, error) {
	if len(candidates) == 0 {
		return map[int]Mapping{}, nil
	}

	// One disjunctive lookup over all candidate pairs.
	clauses := make([]string, len(candidates))
	args := make([]interface{}, 0, len(candidates)*2)
	for i, c := range candidates {
		clauses[i] = "(device_id = ? AND sensor_id = ?)"
		args = append(args, c.DeviceID, c.SensorID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, sensor_id, created_at, updated_at
		FROM device_sensors
		WHERE `+strings.Join(clauses, " OR "),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying mappings by pair: %w", err)
	}
	defer rows.Close()

	type pair struct{ deviceID, sensorID int64 }
	byPair := make(map[pair]Mapping)
	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		byPair[pair{mapping.DeviceID, mapping.SensorID}] = mapping
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mapping rows: %w", err)
	}

	found := make(map[int]Mapping)
	for i, c := range candidates {
		if mapping, ok := byPair[pair{c.DeviceID, c.SensorID}]; ok {
			found[i] = mapping
		}
	}
	return found, nil
}

func (s *mappingStore) Insert(ctx context.Context, candidate Mapping) (Mapping, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO device_sensors (device_id, sensor_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		candidate.DeviceID,
		candidate.SensorID,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return Mapping{}, fmt.Errorf("inserting mapping (%d, %d): %w",
				candidate.DeviceID, candidate.SensorID, dedup.ErrDuplicate)
		}
		return Mapping{}, fmt.Errorf("inserting mapping (%d, %d): %w",
			candidate.DeviceID, candidate.SensorID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Mapping{}, fmt.Errorf("reading mapping id: %w", err)
	}

	return Mapping{
		ID:        id,
		DeviceID:  candidate.DeviceID,
		SensorID:  candidate.SensorID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// =============================================================================
// Scan helpers
// =============================================================================

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSensor(row rowScanner) (Sensor, error) {
	var s Sensor
	var unit sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&s.ID, &s.Type, &unit, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Sensor{}, err
		}
		return Sensor{}, fmt.Errorf("scanning sensor row: %w", err)
	}
	s.Unit = unit.String
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return s, nil
}

func scanMapping(row rowScanner) (Mapping, error) {
	var m Mapping
	var createdAt, updatedAt string
	if err := row.Scan(&m.ID, &m.DeviceID, &m.SensorID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Mapping{}, err
		}
		return Mapping{}, fmt.Errorf("scanning mapping row: %w", err)
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return m, nil
}

// parseTime parses an RFC3339 timestamp written by this package.
// The format is controlled, so parse failures yield the zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s) //nolint:errcheck // Format is controlled
	return t
}

// nullableString returns a sql.NullString, treating "" as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueConstraintError detects SQLite uniqueness violations.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
