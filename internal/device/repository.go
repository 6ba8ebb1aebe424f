package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for device record persistence.
// This abstraction allows different implementations (SQLite, mock)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a record by device ID.
	// Returns ErrNotFound if no record exists.
	GetByID(ctx context.Context, deviceID string) (*Record, error)

	// List retrieves all records.
	List(ctx context.Context) ([]Record, error)

	// Save upserts the full record in a single statement, so concurrent
	// writers can never interleave a partial row.
	Save(ctx context.Context, record *Record) error

	// UpdateTemperature updates only the temperature column.
	// Returns ErrNotFound if no record exists.
	UpdateTemperature(ctx context.Context, deviceID string, celsius float64) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// devices table migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `device_id, device_type, alias, color, floor, assigned,
	position_x, position_y, angle, min_angle, max_angle, temperature,
	created_at, updated_at`

// GetByID retrieves a record by device ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, deviceID string) (*Record, error) {
	query := "SELECT " + recordColumns + " FROM devices WHERE device_id = ?"

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return record, nil
}

// List retrieves all records ordered by device ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM devices ORDER BY device_id"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return records, nil
}

// Save upserts the full record. INSERT OR REPLACE keeps the write atomic:
// either the whole new row lands or nothing does.
func (r *SQLiteRepository) Save(ctx context.Context, record *Record) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	var posX, posY sql.NullFloat64
	if record.Position != nil {
		posX = sql.NullFloat64{Float64: record.Position.X, Valid: true}
		posY = sql.NullFloat64{Float64: record.Position.Y, Valid: true}
	}

	var angle, minAngle, maxAngle sql.NullInt64
	if record.Vent != nil {
		angle = sql.NullInt64{Int64: int64(record.Vent.Angle), Valid: true}
		if record.Vent.MinAngle != nil {
			minAngle = sql.NullInt64{Int64: int64(*record.Vent.MinAngle), Valid: true}
		}
		if record.Vent.MaxAngle != nil {
			maxAngle = sql.NullInt64{Int64: int64(*record.Vent.MaxAngle), Valid: true}
		}
	}

	var temperature sql.NullFloat64
	if record.Sensor != nil {
		temperature = sql.NullFloat64{Float64: record.Sensor.Temperature, Valid: true}
	}

	query := `
		INSERT INTO devices (
			device_id, device_type, alias, color, floor, assigned,
			position_x, position_y, angle, min_angle, max_angle, temperature,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			alias = excluded.alias,
			color = excluded.color,
			floor = excluded.floor,
			assigned = excluded.assigned,
			position_x = excluded.position_x,
			position_y = excluded.position_y,
			angle = excluded.angle,
			min_angle = excluded.min_angle,
			max_angle = excluded.max_angle,
			temperature = excluded.temperature,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		record.DeviceID,
		string(record.Type),
		record.Alias,
		record.Color,
		record.Floor,
		boolToInt(record.Assigned),
		posX,
		posY,
		angle,
		minAngle,
		maxAngle,
		temperature,
		record.CreatedAt.Format(time.RFC3339),
		record.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving device: %w", err)
	}
	return nil
}

// UpdateTemperature updates only the temperature column. The device type is
// not rewritten, so a stray update cannot change the row's shape.
func (r *SQLiteRepository) UpdateTemperature(ctx context.Context, deviceID string, celsius float64) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET temperature = ?, updated_at = ? WHERE device_id = ?",
		celsius, now, deviceID,
	)
	if err != nil {
		return fmt.Errorf("updating temperature: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a row into a Record, mapping nullable columns back
// into the vent/sensor union.
func scanRecord(scanner rowScanner) (*Record, error) {
	var rec Record
	var deviceType string
	var assigned int
	var posX, posY, temperature sql.NullFloat64
	var angle, minAngle, maxAngle sql.NullInt64
	var createdAt, updatedAt string

	err := scanner.Scan(
		&rec.DeviceID,
		&deviceType,
		&rec.Alias,
		&rec.Color,
		&rec.Floor,
		&assigned,
		&posX,
		&posY,
		&angle,
		&minAngle,
		&maxAngle,
		&temperature,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Type = Type(deviceType)
	rec.Assigned = assigned != 0

	if posX.Valid && posY.Valid {
		rec.Position = &Position{X: posX.Float64, Y: posY.Float64}
	}

	switch rec.Type {
	case TypeVent:
		vent := &VentState{}
		if angle.Valid {
			vent.Angle = int(angle.Int64)
		}
		if minAngle.Valid {
			v := int(minAngle.Int64)
			vent.MinAngle = &v
		}
		if maxAngle.Valid {
			v := int(maxAngle.Int64)
			vent.MaxAngle = &v
		}
		rec.Vent = vent
	case TypeSensor:
		sensor := &SensorState{}
		if temperature.Valid {
			sensor.Temperature = temperature.Float64
		}
		rec.Sensor = sensor
	}

	var parseErr error
	rec.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	rec.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &rec, nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
