package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	records map[string]*Record
	// Counters for asserting persistence behaviour
	saveCount      int
	tempWriteCount int
	// For testing error paths
	saveErr       error
	updateTempErr error
	listErr       error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		records: make(map[string]*Record),
	}
}

func (m *MockRepository) GetByID(_ context.Context, deviceID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.records[deviceID]; ok {
		return r.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Record, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, *r.Clone())
	}
	return records, nil
}

func (m *MockRepository) Save(_ context.Context, record *Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCount++
	m.records[record.DeviceID] = record.Clone()
	return nil
}

func (m *MockRepository) UpdateTemperature(_ context.Context, deviceID string, celsius float64) error {
	if m.updateTempErr != nil {
		return m.updateTempErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[deviceID]
	if !ok {
		return ErrNotFound
	}
	if r.Sensor != nil {
		r.Sensor.Temperature = celsius
	}
	m.tempWriteCount++
	return nil
}

// addRecord seeds the mock directly for test setup.
func (m *MockRepository) addRecord(r *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.DeviceID] = r.Clone()
}

func (m *MockRepository) saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCount
}

func (m *MockRepository) tempWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tempWriteCount
}

// mockTelemetry records telemetry writes for assertions.
type mockTelemetry struct {
	mu     sync.Mutex
	temps  []float64
	angles []int
}

func (t *mockTelemetry) WriteTemperature(_ string, celsius float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.temps = append(t.temps, celsius)
}

func (t *mockTelemetry) WriteAngle(_ string, angle int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.angles = append(t.angles, angle)
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }
func boolPtr(v bool) *bool        { return &v }

func ventRegistration(id string) Registration {
	return Registration{
		DeviceID: id,
		Type:     TypeVent,
		Angle:    intPtr(45),
		MinAngle: intPtr(0),
		MaxAngle: intPtr(90),
	}
}

func sensorRegistration(id string) Registration {
	return Registration{
		DeviceID:    id,
		Type:        TypeSensor,
		Temperature: floatPtr(21.5),
	}
}

func TestStore_UpsertFromRegistration(t *testing.T) {
	ctx := context.Background()

	t.Run("creates vent with defaults", func(t *testing.T) {
		store := NewStore(NewMockRepository())

		rec, err := store.UpsertFromRegistration(ctx, ventRegistration("vent-1"))
		if err != nil {
			t.Fatalf("UpsertFromRegistration() error = %v", err)
		}
		if rec.Type != TypeVent {
			t.Errorf("Type = %q, want %q", rec.Type, TypeVent)
		}
		if rec.Color != DefaultVentColor {
			t.Errorf("Color = %q, want %q", rec.Color, DefaultVentColor)
		}
		if rec.Floor != DefaultFloor {
			t.Errorf("Floor = %q, want %q", rec.Floor, DefaultFloor)
		}
		if rec.Assigned {
			t.Error("new record should not be assigned")
		}
		if rec.Vent == nil || rec.Vent.Angle != 45 {
			t.Fatalf("Vent = %+v, want angle 45", rec.Vent)
		}
		if !rec.Vent.BoundsKnown() || *rec.Vent.MinAngle != 0 || *rec.Vent.MaxAngle != 90 {
			t.Errorf("bounds = %+v, want [0,90]", rec.Vent)
		}
	})

	t.Run("creates sensor with defaults", func(t *testing.T) {
		store := NewStore(NewMockRepository())

		rec, err := store.UpsertFromRegistration(ctx, sensorRegistration("sensor-1"))
		if err != nil {
			t.Fatalf("UpsertFromRegistration() error = %v", err)
		}
		if rec.Color != DefaultSensorColor {
			t.Errorf("Color = %q, want %q", rec.Color, DefaultSensorColor)
		}
		if rec.Sensor == nil || rec.Sensor.Temperature != 21.5 {
			t.Errorf("Sensor = %+v, want temperature 21.5", rec.Sensor)
		}
	})

	t.Run("re-registration preserves placement", func(t *testing.T) {
		store := NewStore(NewMockRepository())

		if _, err := store.UpsertFromRegistration(ctx, ventRegistration("vent-2")); err != nil {
			t.Fatalf("first registration error = %v", err)
		}
		if _, err := store.ApplyPlacement(ctx, "vent-2", PlacementUpdate{
			Alias:    strPtr("Bedroom vent"),
			Color:    strPtr("#ff0000"),
			Floor:    strPtr("2"),
			Position: &Position{X: 100, Y: 200},
		}); err != nil {
			t.Fatalf("ApplyPlacement() error = %v", err)
		}

		// Device reboots and registers again with a fresh angle.
		reg := ventRegistration("vent-2")
		reg.Angle = intPtr(10)
		rec, err := store.UpsertFromRegistration(ctx, reg)
		if err != nil {
			t.Fatalf("re-registration error = %v", err)
		}

		if rec.Alias != "Bedroom vent" || rec.Color != "#ff0000" || rec.Floor != "2" {
			t.Errorf("placement lost on re-registration: %+v", rec)
		}
		if !rec.Assigned || rec.Position == nil || rec.Position.X != 100 {
			t.Errorf("position lost on re-registration: %+v", rec.Position)
		}
		if rec.Vent.Angle != 10 {
			t.Errorf("Angle = %d, want 10 (device fact should refresh)", rec.Vent.Angle)
		}
	})

	t.Run("clamps reported angle into declared bounds", func(t *testing.T) {
		store := NewStore(NewMockRepository())

		reg := ventRegistration("vent-3")
		reg.Angle = intPtr(170)
		reg.MaxAngle = intPtr(90)

		rec, err := store.UpsertFromRegistration(ctx, reg)
		if err != nil {
			t.Fatalf("UpsertFromRegistration() error = %v", err)
		}
		if rec.Vent.Angle != 90 {
			t.Errorf("Angle = %d, want 90 (clamped to max)", rec.Vent.Angle)
		}
	})

	t.Run("keeps reported angle when bounds not declared", func(t *testing.T) {
		store := NewStore(NewMockRepository())

		// Firmware registers with just its resting angle; bounds come
		// later, from config or a subsequent registration.
		rec, err := store.UpsertFromRegistration(ctx, Registration{
			DeviceID: "vent-fw",
			Type:     TypeVent,
			Angle:    intPtr(30),
		})
		if err != nil {
			t.Fatalf("UpsertFromRegistration() error = %v", err)
		}
		if rec.Vent.Angle != 30 {
			t.Errorf("Angle = %d, want 30 (reported angle lost when no bounds declared)", rec.Vent.Angle)
		}
		if rec.Vent.BoundsKnown() {
			t.Errorf("bounds = %+v, want undeclared", rec.Vent)
		}
	})

	t.Run("declaring bounds later clamps the stored angle", func(t *testing.T) {
		store := NewStore(NewMockRepository())

		if _, err := store.UpsertFromRegistration(ctx, Registration{
			DeviceID: "vent-fw2",
			Type:     TypeVent,
			Angle:    intPtr(170),
		}); err != nil {
			t.Fatalf("boundless registration error = %v", err)
		}

		rec, err := store.UpsertFromRegistration(ctx, Registration{
			DeviceID: "vent-fw2",
			Type:     TypeVent,
			MinAngle: intPtr(0),
			MaxAngle: intPtr(90),
		})
		if err != nil {
			t.Fatalf("bounds registration error = %v", err)
		}
		if rec.Vent.Angle != 90 {
			t.Errorf("Angle = %d, want 90 (clamped once bounds arrive)", rec.Vent.Angle)
		}
	})

	t.Run("type conflict keeps original type", func(t *testing.T) {
		store := NewStore(NewMockRepository())

		if _, err := store.UpsertFromRegistration(ctx, ventRegistration("vent-4")); err != nil {
			t.Fatalf("first registration error = %v", err)
		}

		rec, err := store.UpsertFromRegistration(ctx, sensorRegistration("vent-4"))
		if err != nil {
			t.Fatalf("conflicting registration error = %v", err)
		}
		if rec.Type != TypeVent {
			t.Errorf("Type = %q, want %q (first registration wins)", rec.Type, TypeVent)
		}
		if rec.Vent == nil {
			t.Error("vent state dropped on conflicting registration")
		}
	})

	t.Run("rejects invalid registrations", func(t *testing.T) {
		store := NewStore(NewMockRepository())

		tests := []struct {
			name    string
			reg     Registration
			wantErr error
		}{
			{"empty device id", Registration{Type: TypeVent}, ErrInvalidDeviceID},
			{"unknown type", Registration{DeviceID: "x", Type: "thermostat"}, ErrInvalidType},
			{"inverted bounds", Registration{
				DeviceID: "x", Type: TypeVent,
				MinAngle: intPtr(90), MaxAngle: intPtr(0),
			}, ErrInvalidBounds},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := store.UpsertFromRegistration(ctx, tt.reg); !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("keeps in-memory record when persistence fails", func(t *testing.T) {
		repo := NewMockRepository()
		repo.saveErr = errors.New("disk full")
		store := NewStore(repo)

		rec, err := store.UpsertFromRegistration(ctx, ventRegistration("vent-5"))
		if err != nil {
			t.Fatalf("UpsertFromRegistration() error = %v", err)
		}
		if rec == nil {
			t.Fatal("expected record despite persistence failure")
		}
		if _, err := store.Get("vent-5"); err != nil {
			t.Errorf("Get() error = %v, record should be live", err)
		}
	})
}

func TestStore_SetAngle(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Store, *MockRepository, *mockTelemetry) {
		t.Helper()
		repo := NewMockRepository()
		store := NewStore(repo)
		telem := &mockTelemetry{}
		store.SetTelemetry(telem)
		if _, err := store.UpsertFromRegistration(ctx, ventRegistration("vent-1")); err != nil {
			t.Fatalf("registration error = %v", err)
		}
		return store, repo, telem
	}

	t.Run("updates angle within bounds", func(t *testing.T) {
		store, repo, telem := setup(t)

		rec, err := store.SetAngle(ctx, "vent-1", 60)
		if err != nil {
			t.Fatalf("SetAngle() error = %v", err)
		}
		if rec.Vent.Angle != 60 {
			t.Errorf("Angle = %d, want 60", rec.Vent.Angle)
		}

		saved, _ := repo.GetByID(ctx, "vent-1")
		if saved.Vent.Angle != 60 {
			t.Errorf("persisted angle = %d, want 60", saved.Vent.Angle)
		}
		if len(telem.angles) != 1 || telem.angles[0] != 60 {
			t.Errorf("telemetry angles = %v, want [60]", telem.angles)
		}
	})

	t.Run("accepts boundary angles", func(t *testing.T) {
		store, _, _ := setup(t)

		for _, angle := range []int{0, 90} {
			if _, err := store.SetAngle(ctx, "vent-1", angle); err != nil {
				t.Errorf("SetAngle(%d) error = %v", angle, err)
			}
		}
	})

	t.Run("rejects out-of-range without clamping", func(t *testing.T) {
		store, _, _ := setup(t)

		for _, angle := range []int{-1, 91, 500} {
			if _, err := store.SetAngle(ctx, "vent-1", angle); !errors.Is(err, ErrAngleOutOfRange) {
				t.Errorf("SetAngle(%d) error = %v, want ErrAngleOutOfRange", angle, err)
			}
		}

		rec, _ := store.Get("vent-1")
		if rec.Vent.Angle != 45 {
			t.Errorf("Angle = %d, want 45 (unchanged after rejections)", rec.Vent.Angle)
		}
	})

	t.Run("accepts any angle while bounds are undeclared", func(t *testing.T) {
		store, _, _ := setup(t)
		if _, err := store.UpsertFromRegistration(ctx, Registration{
			DeviceID: "vent-fw",
			Type:     TypeVent,
			Angle:    intPtr(30),
		}); err != nil {
			t.Fatalf("registration error = %v", err)
		}

		rec, err := store.SetAngle(ctx, "vent-fw", 170)
		if err != nil {
			t.Fatalf("SetAngle() error = %v", err)
		}
		if rec.Vent.Angle != 170 {
			t.Errorf("Angle = %d, want 170 (no bounds to enforce)", rec.Vent.Angle)
		}
	})

	t.Run("returns ErrNotFound for unknown device", func(t *testing.T) {
		store, _, _ := setup(t)

		if _, err := store.SetAngle(ctx, "ghost", 10); !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("returns ErrNotVent for sensors", func(t *testing.T) {
		store, _, _ := setup(t)
		if _, err := store.UpsertFromRegistration(ctx, sensorRegistration("sensor-1")); err != nil {
			t.Fatalf("registration error = %v", err)
		}

		if _, err := store.SetAngle(ctx, "sensor-1", 10); !errors.Is(err, ErrNotVent) {
			t.Errorf("error = %v, want ErrNotVent", err)
		}
	})

	t.Run("concurrent writes are linearised", func(t *testing.T) {
		store, repo, _ := setup(t)
		before := repo.saves()

		const writers = 50
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(angle int) {
				defer wg.Done()
				if _, err := store.SetAngle(ctx, "vent-1", angle); err != nil {
					t.Errorf("SetAngle(%d) error = %v", angle, err)
				}
			}(i % 91)
		}
		wg.Wait()

		// Every write persisted exactly once, and the final state is
		// one of the requested angles.
		if got := repo.saves() - before; got != writers {
			t.Errorf("saves = %d, want %d", got, writers)
		}
		rec, _ := store.Get("vent-1")
		if rec.Vent.Angle < 0 || rec.Vent.Angle > 90 {
			t.Errorf("final angle %d outside bounds", rec.Vent.Angle)
		}
	})
}

func TestStore_SetTemperature(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Store, *MockRepository) {
		t.Helper()
		repo := NewMockRepository()
		store := NewStore(repo)
		if _, err := store.UpsertFromRegistration(ctx, sensorRegistration("sensor-1")); err != nil {
			t.Fatalf("registration error = %v", err)
		}
		return store, repo
	}

	t.Run("updates in-memory immediately", func(t *testing.T) {
		store, _ := setup(t)

		rec, err := store.SetTemperature(ctx, "sensor-1", 25.0)
		if err != nil {
			t.Fatalf("SetTemperature() error = %v", err)
		}
		if rec.Sensor.Temperature != 25.0 {
			t.Errorf("Temperature = %v, want 25.0", rec.Sensor.Temperature)
		}

		got, _ := store.Get("sensor-1")
		if got.Sensor.Temperature != 25.0 {
			t.Errorf("live Temperature = %v, want 25.0", got.Sensor.Temperature)
		}
	})

	t.Run("throttles database writes", func(t *testing.T) {
		store, repo := setup(t)
		store.SetTemperaturePersistInterval(time.Hour)
		before := repo.tempWrites()

		for i := 0; i < 10; i++ {
			if _, err := store.SetTemperature(ctx, "sensor-1", 20.0+float64(i)); err != nil {
				t.Fatalf("SetTemperature() error = %v", err)
			}
		}

		// Only the first reading inside the window hits the database.
		if got := repo.tempWrites() - before; got != 1 {
			t.Errorf("temperature writes = %d, want 1", got)
		}

		// But every reading is live in memory.
		rec, _ := store.Get("sensor-1")
		if rec.Sensor.Temperature != 29.0 {
			t.Errorf("live Temperature = %v, want 29.0", rec.Sensor.Temperature)
		}
	})

	t.Run("zero interval persists every reading", func(t *testing.T) {
		store, repo := setup(t)
		store.SetTemperaturePersistInterval(0)
		before := repo.tempWrites()

		for i := 0; i < 5; i++ {
			if _, err := store.SetTemperature(ctx, "sensor-1", 20.0); err != nil {
				t.Fatalf("SetTemperature() error = %v", err)
			}
		}
		if got := repo.tempWrites() - before; got != 5 {
			t.Errorf("temperature writes = %d, want 5", got)
		}
	})

	t.Run("returns ErrNotFound for unknown device", func(t *testing.T) {
		store, _ := setup(t)
		if _, err := store.SetTemperature(ctx, "ghost", 20.0); !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("returns ErrNotSensor for vents", func(t *testing.T) {
		store, _ := setup(t)
		if _, err := store.UpsertFromRegistration(ctx, ventRegistration("vent-1")); err != nil {
			t.Fatalf("registration error = %v", err)
		}
		if _, err := store.SetTemperature(ctx, "vent-1", 20.0); !errors.Is(err, ErrNotSensor) {
			t.Errorf("error = %v, want ErrNotSensor", err)
		}
	})
}

func TestStore_ApplyPlacement(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *Store {
		t.Helper()
		store := NewStore(NewMockRepository())
		if _, err := store.UpsertFromRegistration(ctx, ventRegistration("vent-1")); err != nil {
			t.Fatalf("registration error = %v", err)
		}
		return store
	}

	t.Run("position implies assigned", func(t *testing.T) {
		store := setup(t)

		rec, err := store.ApplyPlacement(ctx, "vent-1", PlacementUpdate{
			Position: &Position{X: 10, Y: 20},
		})
		if err != nil {
			t.Fatalf("ApplyPlacement() error = %v", err)
		}
		if !rec.Assigned {
			t.Error("Assigned = false, want true after position set")
		}
	})

	t.Run("unassigning clears position", func(t *testing.T) {
		store := setup(t)

		if _, err := store.ApplyPlacement(ctx, "vent-1", PlacementUpdate{
			Position: &Position{X: 10, Y: 20},
		}); err != nil {
			t.Fatalf("ApplyPlacement() error = %v", err)
		}

		rec, err := store.ApplyPlacement(ctx, "vent-1", PlacementUpdate{
			Assigned: boolPtr(false),
		})
		if err != nil {
			t.Fatalf("ApplyPlacement() error = %v", err)
		}
		if rec.Assigned || rec.Position != nil {
			t.Errorf("record = %+v, want unassigned with nil position", rec)
		}
	})

	t.Run("assigned without position is invalid", func(t *testing.T) {
		store := setup(t)

		_, err := store.ApplyPlacement(ctx, "vent-1", PlacementUpdate{
			Assigned: boolPtr(true),
		})
		if !errors.Is(err, ErrInvalidPlacement) {
			t.Errorf("error = %v, want ErrInvalidPlacement", err)
		}
	})

	t.Run("returns ErrNotFound for unknown device", func(t *testing.T) {
		store := setup(t)
		if _, err := store.ApplyPlacement(ctx, "ghost", PlacementUpdate{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("populates records from repository", func(t *testing.T) {
		repo := NewMockRepository()
		repo.addRecord(&Record{
			DeviceID: "vent-1", Type: TypeVent,
			Color: DefaultVentColor, Floor: DefaultFloor,
			Vent: &VentState{Angle: 45, MinAngle: intPtr(0), MaxAngle: intPtr(90)},
		})
		repo.addRecord(&Record{
			DeviceID: "sensor-1", Type: TypeSensor,
			Color: DefaultSensorColor, Floor: DefaultFloor,
			Sensor: &SensorState{Temperature: 19.5},
		})

		store := NewStore(repo)
		if err := store.Load(ctx); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if store.Count() != 2 {
			t.Errorf("Count() = %d, want 2", store.Count())
		}

		list := store.List()
		if len(list) != 2 || list[0].DeviceID != "sensor-1" || list[1].DeviceID != "vent-1" {
			t.Errorf("List() order = %v, want sorted by device ID", list)
		}
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		repo := NewMockRepository()
		repo.listErr = errors.New("db locked")

		store := NewStore(repo)
		if err := store.Load(ctx); err == nil {
			t.Error("Load() error = nil, want error")
		}
	})
}

func TestStore_Get_ReturnsClone(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMockRepository())
	if _, err := store.UpsertFromRegistration(ctx, ventRegistration("vent-1")); err != nil {
		t.Fatalf("registration error = %v", err)
	}

	rec, err := store.Get("vent-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	rec.Vent.Angle = 999
	rec.Alias = "mutated"

	fresh, _ := store.Get("vent-1")
	if fresh.Vent.Angle == 999 || fresh.Alias == "mutated" {
		t.Error("mutating a returned record leaked into the store")
	}
}
