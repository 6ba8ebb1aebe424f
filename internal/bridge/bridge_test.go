package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/airloom/ventsync/internal/device"
	"github.com/airloom/ventsync/internal/hub"
	"github.com/airloom/ventsync/internal/infrastructure/config"
	"github.com/airloom/ventsync/internal/infrastructure/logging"
	"github.com/airloom/ventsync/internal/infrastructure/mqtt"
)

// fakeBroker records subscriptions and publishes in memory.
type fakeBroker struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published map[string][][]byte
	subErr    error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		handlers:  make(map[string]mqtt.MessageHandler),
		published: make(map[string][][]byte),
	}
}

func (b *fakeBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if b.subErr != nil {
		return b.subErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) PublishRetained(topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[topic] = append(b.published[topic], payload)
	return nil
}

// deliver invokes the subscribed wildcard handler as the paho client would.
func (b *fakeBroker) deliver(t *testing.T, topic string, payload []byte) error {
	t.Helper()
	b.mu.Lock()
	handler, ok := b.handlers["ventsync/telemetry/+"]
	b.mu.Unlock()
	if !ok {
		t.Fatal("no telemetry subscription registered")
	}
	return handler(topic, payload)
}

func (b *fakeBroker) lastPublished(topic string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.published[topic]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// memRepo is an in-memory device.Repository.
type memRepo struct {
	mu      sync.Mutex
	records map[string]*device.Record
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*device.Record)}
}

func (m *memRepo) GetByID(_ context.Context, deviceID string) (*device.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[deviceID]; ok {
		return r.Clone(), nil
	}
	return nil, device.ErrNotFound
}

func (m *memRepo) List(_ context.Context) ([]device.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]device.Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, *r.Clone())
	}
	return records, nil
}

func (m *memRepo) Save(_ context.Context, record *device.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.DeviceID] = record.Clone()
	return nil
}

func (m *memRepo) UpdateTemperature(_ context.Context, deviceID string, celsius float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[deviceID]
	if !ok {
		return device.ErrNotFound
	}
	if r.Sensor != nil {
		r.Sensor.Temperature = celsius
	}
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func newTestBridge(t *testing.T) (*Bridge, *fakeBroker, *device.Store) {
	t.Helper()

	store := device.NewStore(newMemRepo())
	wsCfg := config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, SendBufferSize: 16}
	h := hub.New(wsCfg, store, logging.Default())
	broker := newFakeBroker()

	b := New(broker, store, h, 1, logging.Default())
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return b, broker, store
}

func seedSensor(t *testing.T, store *device.Store, id string) {
	t.Helper()
	_, err := store.UpsertFromRegistration(context.Background(), device.Registration{
		DeviceID:    id,
		Type:        device.TypeSensor,
		Temperature: floatPtr(20.0),
	})
	if err != nil {
		t.Fatalf("seeding sensor: %v", err)
	}
}

func TestBridge_TelemetryIngest(t *testing.T) {
	t.Run("applies reading and mirrors state", func(t *testing.T) {
		_, broker, store := newTestBridge(t)
		seedSensor(t, store, "sensor-1")

		err := broker.deliver(t, "ventsync/telemetry/sensor-1", []byte(`{"temperature":26.5}`))
		if err != nil {
			t.Fatalf("handler error = %v", err)
		}

		rec, err := store.Get("sensor-1")
		if err != nil {
			t.Fatalf("store.Get() error = %v", err)
		}
		if rec.Sensor.Temperature != 26.5 {
			t.Errorf("Temperature = %v, want 26.5", rec.Sensor.Temperature)
		}

		payload := broker.lastPublished("ventsync/state/sensor-1")
		if payload == nil {
			t.Fatal("state mirror not published")
		}
		var mirrored device.Record
		if err := json.Unmarshal(payload, &mirrored); err != nil {
			t.Fatalf("decoding mirror payload: %v", err)
		}
		if mirrored.Sensor == nil || mirrored.Sensor.Temperature != 26.5 {
			t.Errorf("mirrored record = %+v, want temperature 26.5", mirrored)
		}
	})

	t.Run("drops readings for unknown devices", func(t *testing.T) {
		_, broker, store := newTestBridge(t)

		err := broker.deliver(t, "ventsync/telemetry/ghost", []byte(`{"temperature":26.5}`))
		if err != nil {
			t.Fatalf("handler error = %v, unknown devices should be a silent drop", err)
		}
		if store.Count() != 0 {
			t.Error("telemetry created a record")
		}
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		_, broker, store := newTestBridge(t)
		seedSensor(t, store, "sensor-1")

		if err := broker.deliver(t, "ventsync/telemetry/sensor-1", []byte(`not json`)); err == nil {
			t.Error("handler error = nil, want parse error")
		}
		if err := broker.deliver(t, "ventsync/telemetry/sensor-1", []byte(`{}`)); err == nil {
			t.Error("handler error = nil, want missing-temperature error")
		}

		rec, _ := store.Get("sensor-1")
		if rec.Sensor.Temperature != 20.0 {
			t.Errorf("Temperature = %v, want 20.0 (unchanged)", rec.Sensor.Temperature)
		}
	})
}

func TestBridge_MirrorRecord(t *testing.T) {
	b, broker, store := newTestBridge(t)
	seedSensor(t, store, "sensor-1")

	rec, _ := store.Get("sensor-1")
	b.MirrorRecord(rec)

	payload := broker.lastPublished("ventsync/state/sensor-1")
	if payload == nil {
		t.Fatal("MirrorRecord did not publish")
	}
	var mirrored device.Record
	if err := json.Unmarshal(payload, &mirrored); err != nil {
		t.Fatalf("decoding mirror payload: %v", err)
	}
	if mirrored.DeviceID != "sensor-1" || mirrored.Type != device.TypeSensor {
		t.Errorf("mirrored record = %+v", mirrored)
	}
}

func TestBridge_StartPropagatesSubscribeError(t *testing.T) {
	store := device.NewStore(newMemRepo())
	wsCfg := config.WebSocketConfig{Path: "/ws", SendBufferSize: 16}
	h := hub.New(wsCfg, store, logging.Default())
	broker := newFakeBroker()
	broker.subErr = mqtt.ErrNotConnected

	b := New(broker, store, h, 1, logging.Default())
	if err := b.Start(); err == nil {
		t.Error("Start() error = nil, want subscribe error")
	}
}
