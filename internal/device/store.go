package device

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Store.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Telemetry receives high-frequency readings for time-series recording.
// Implementations must be non-blocking; the Store calls these while holding
// the per-device lock.
type Telemetry interface {
	WriteTemperature(deviceID string, celsius float64)
	WriteAngle(deviceID string, angle int)
}

// defaultTemperaturePersistInterval is the minimum gap between database
// writes for a single sensor's temperature. Readings arriving faster than
// this are kept in memory (and forwarded to telemetry) but not re-persisted.
const defaultTemperaturePersistInterval = 15 * time.Second

// deviceLock serialises all mutating operations for one device ID.
// It also carries per-device throttle state for temperature persistence.
type deviceLock struct {
	sync.Mutex
	lastTempSave time.Time
}

// Store owns the canonical in-memory record for every known device and
// gates all writes through per-device locks, so concurrent operations on
// the same device ID are linearised while distinct devices proceed in
// parallel.
//
// The in-memory record is the source of truth for live reads and
// broadcasts. Every mutation is persisted through the Repository before
// the lock is released; a persistence failure is logged and the in-memory
// update is kept (live consistency over durability).
//
// All public methods are thread-safe.
type Store struct {
	repo      Repository
	logger    Logger
	telemetry Telemetry

	mu      sync.RWMutex
	records map[string]*Record
	locks   map[string]*deviceLock

	tempPersistEvery time.Duration
}

// NewStore creates a device record store backed by the given repository.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:             repo,
		logger:           noopLogger{},
		records:          make(map[string]*Record),
		locks:            make(map[string]*deviceLock),
		tempPersistEvery: defaultTemperaturePersistInterval,
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetTelemetry attaches an optional telemetry sink for temperature and
// angle readings.
func (s *Store) SetTelemetry(t Telemetry) {
	s.telemetry = t
}

// SetTemperaturePersistInterval overrides the temperature write throttle.
// Zero disables throttling (every reading is persisted).
func (s *Store) SetTemperaturePersistInterval(d time.Duration) {
	s.tempPersistEvery = d
}

// Load populates the in-memory records from the repository.
// This should be called once on application startup.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.repo.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record, len(records))
	for i := range records {
		rec := records[i]
		s.records[rec.DeviceID] = rec.Clone()
	}

	s.logger.Info("device records loaded", "count", len(records))
	return nil
}

// lockFor returns the mutex serialising operations for the given device ID,
// creating it on first use. Lock creation is O(1) under the store mutex.
func (s *Store) lockFor(deviceID string) *deviceLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[deviceID]
	if !ok {
		l = &deviceLock{}
		s.locks[deviceID] = l
	}
	return l
}

// current returns the live record for deviceID, or nil.
func (s *Store) current(deviceID string) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[deviceID]
}

// swap installs rec as the live record for its device ID. Readers see
// either the old or the new record, never a partial update.
func (s *Store) swap(rec *Record) {
	s.mu.Lock()
	s.records[rec.DeviceID] = rec
	s.mu.Unlock()
}

// UpsertFromRegistration creates or merges a record from a device's
// register message, persists it, and returns the merged record.
//
// Merge semantics: only device-originated facts (angle, bounds,
// temperature) are taken from the registration; display and placement
// fields (alias, color, floor, assigned, position) survive reconnects.
// The device type is fixed at first registration; a conflicting type in a
// later registration is logged and ignored.
func (s *Store) UpsertFromRegistration(ctx context.Context, reg Registration) (*Record, error) {
	if err := validateRegistration(reg); err != nil {
		return nil, err
	}

	l := s.lockFor(reg.DeviceID)
	l.Lock()
	defer l.Unlock()

	var rec *Record
	if existing := s.current(reg.DeviceID); existing != nil {
		rec = existing.Clone()
		if rec.Type != reg.Type {
			s.logger.Warn("registration type conflict ignored",
				"device_id", reg.DeviceID,
				"registered_type", rec.Type,
				"claimed_type", reg.Type,
			)
		}
	} else {
		rec = &Record{
			DeviceID: reg.DeviceID,
			Type:     reg.Type,
			Color:    DefaultColor(reg.Type),
			Floor:    DefaultFloor,
		}
	}

	switch rec.Type {
	case TypeVent:
		if rec.Vent == nil {
			rec.Vent = &VentState{}
		}
		if reg.MinAngle != nil {
			minAngle := *reg.MinAngle
			rec.Vent.MinAngle = &minAngle
		}
		if reg.MaxAngle != nil {
			maxAngle := *reg.MaxAngle
			rec.Vent.MaxAngle = &maxAngle
		}
		if reg.Angle != nil {
			rec.Vent.Angle = *reg.Angle
		}
		// A rebooted vent may report a resting angle outside freshly
		// declared bounds; clamp so the record invariant holds. Until the
		// device declares bounds the reported angle is taken as-is.
		if rec.Vent.BoundsKnown() {
			if rec.Vent.Angle < *rec.Vent.MinAngle {
				rec.Vent.Angle = *rec.Vent.MinAngle
			}
			if rec.Vent.Angle > *rec.Vent.MaxAngle {
				rec.Vent.Angle = *rec.Vent.MaxAngle
			}
		}
	case TypeSensor:
		if rec.Sensor == nil {
			rec.Sensor = &SensorState{}
		}
		if reg.Temperature != nil {
			rec.Sensor.Temperature = *reg.Temperature
		}
	}

	if err := s.repo.Save(ctx, rec); err != nil {
		s.logger.Error("persisting registration failed",
			"device_id", rec.DeviceID, "error", err)
	}

	s.swap(rec)
	s.logger.Debug("device registered", "device_id", rec.DeviceID, "type", rec.Type)
	return rec.Clone(), nil
}

// SetAngle updates a vent's angle and persists the record.
//
// Returns ErrNotFound if no record exists, ErrNotVent if the record is a
// sensor, and ErrAngleOutOfRange if angle falls outside the declared
// bounds. A vent that has not declared bounds accepts any angle. On any
// error the record is unchanged.
func (s *Store) SetAngle(ctx context.Context, deviceID string, angle int) (*Record, error) {
	l := s.lockFor(deviceID)
	l.Lock()
	defer l.Unlock()

	existing := s.current(deviceID)
	if existing == nil {
		return nil, ErrNotFound
	}
	if existing.Vent == nil {
		return nil, ErrNotVent
	}
	if existing.Vent.BoundsKnown() &&
		(angle < *existing.Vent.MinAngle || angle > *existing.Vent.MaxAngle) {
		return nil, ErrAngleOutOfRange
	}

	rec := existing.Clone()
	rec.Vent.Angle = angle

	if err := s.repo.Save(ctx, rec); err != nil {
		s.logger.Error("persisting angle failed",
			"device_id", deviceID, "angle", angle, "error", err)
	}
	if s.telemetry != nil {
		s.telemetry.WriteAngle(deviceID, angle)
	}

	s.swap(rec)
	return rec.Clone(), nil
}

// SetTemperature records a sensor reading. The in-memory value is always
// updated immediately; the database write is throttled per device since
// temperature is high-frequency telemetry.
//
// Returns ErrNotFound if no record exists and ErrNotSensor if the record
// is a vent.
func (s *Store) SetTemperature(ctx context.Context, deviceID string, celsius float64) (*Record, error) {
	l := s.lockFor(deviceID)
	l.Lock()
	defer l.Unlock()

	existing := s.current(deviceID)
	if existing == nil {
		return nil, ErrNotFound
	}
	if existing.Sensor == nil {
		return nil, ErrNotSensor
	}

	rec := existing.Clone()
	rec.Sensor.Temperature = celsius
	s.swap(rec)

	if s.telemetry != nil {
		s.telemetry.WriteTemperature(deviceID, celsius)
	}

	if time.Since(l.lastTempSave) >= s.tempPersistEvery {
		if err := s.repo.UpdateTemperature(ctx, deviceID, celsius); err != nil {
			s.logger.Error("persisting temperature failed",
				"device_id", deviceID, "error", err)
		}
		l.lastTempSave = time.Now()
	}

	return rec.Clone(), nil
}

// ApplyPlacement applies an arrangement-save update (alias, color, floor,
// assigned, position) to a record and persists it.
//
// A provided position implies assigned; assigned=false clears any
// position. Setting assigned=true without a position (new or existing)
// returns ErrInvalidPlacement.
func (s *Store) ApplyPlacement(ctx context.Context, deviceID string, upd PlacementUpdate) (*Record, error) {
	l := s.lockFor(deviceID)
	l.Lock()
	defer l.Unlock()

	existing := s.current(deviceID)
	if existing == nil {
		return nil, ErrNotFound
	}

	rec := existing.Clone()
	if upd.Alias != nil {
		rec.Alias = *upd.Alias
	}
	if upd.Color != nil {
		rec.Color = *upd.Color
	}
	if upd.Floor != nil {
		rec.Floor = *upd.Floor
	}

	if upd.Position != nil {
		pos := *upd.Position
		rec.Position = &pos
		rec.Assigned = true
	}
	if upd.Assigned != nil {
		if *upd.Assigned {
			if rec.Position == nil {
				return nil, ErrInvalidPlacement
			}
			rec.Assigned = true
		} else {
			rec.Assigned = false
			rec.Position = nil
		}
	}

	if err := s.repo.Save(ctx, rec); err != nil {
		s.logger.Error("persisting placement failed",
			"device_id", deviceID, "error", err)
	}

	s.swap(rec)
	return rec.Clone(), nil
}

// Get retrieves the live record for a device ID.
// Returns ErrNotFound if no record exists. The returned record is a
// clone; callers can safely modify it.
func (s *Store) Get(deviceID string) (*Record, error) {
	rec := s.current(deviceID)
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns clones of all live records, sorted by device ID.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, *rec.Clone())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DeviceID < records[j].DeviceID
	})
	return records
}

// Count returns the number of known device records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
