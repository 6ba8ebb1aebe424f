package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/airloom/ventsync/internal/device"
	"github.com/airloom/ventsync/internal/hub"
	"github.com/airloom/ventsync/internal/infrastructure/logging"
	"github.com/airloom/ventsync/internal/infrastructure/mqtt"
)

// Broker is the subset of the MQTT client the bridge needs. Narrowed to
// an interface so tests can run against a fake broker.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishRetained(topic string, payload []byte) error
}

// Bridge connects the record store to an MQTT broker.
//
// Inbound: sensor readings published to ventsync/telemetry/{deviceId}
// are applied to the store and fanned out to WebSocket clients, exactly
// as if the sensor had sent a tempUpdate frame.
//
// Outbound: every record change is mirrored to ventsync/state/{deviceId}
// as a retained message, so MQTT consumers always see current state
// without speaking WebSocket.
type Bridge struct {
	broker Broker
	store  *device.Store
	hub    *hub.Hub
	logger *logging.Logger
	qos    byte
	topics mqtt.Topics
}

// telemetryPayload is the JSON body expected on telemetry topics.
type telemetryPayload struct {
	Temperature *float64 `json:"temperature"`
}

// New creates a bridge. Call Start to begin consuming telemetry, and
// register the bridge as the hub's mirror to publish state changes.
func New(broker Broker, store *device.Store, h *hub.Hub, qos int, logger *logging.Logger) *Bridge {
	return &Bridge{
		broker: broker,
		store:  store,
		hub:    h,
		logger: logger,
		qos:    byte(qos), // #nosec G115 -- QoS validated to 0..2 by config
	}
}

// Start subscribes to the telemetry wildcard topic. Subscriptions
// survive broker reconnects; Start only needs to be called once.
func (b *Bridge) Start() error {
	topic := b.topics.AllTelemetry()
	if err := b.broker.Subscribe(topic, b.qos, b.handleTelemetry); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.logger.Info("mqtt telemetry bridge started", "topic", topic)
	return nil
}

// handleTelemetry applies one inbound sensor reading. Readings for
// unknown or non-sensor devices are dropped: out-of-band telemetry
// cannot create records, only WebSocket registration can.
func (b *Bridge) handleTelemetry(topic string, payload []byte) error {
	deviceID := b.topics.DeviceFromTelemetry(topic)
	if deviceID == "" {
		return fmt.Errorf("unexpected telemetry topic %q", topic)
	}

	var body telemetryPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("parsing telemetry for %s: %w", deviceID, err)
	}
	if body.Temperature == nil {
		return fmt.Errorf("telemetry for %s missing temperature", deviceID)
	}

	rec, err := b.store.SetTemperature(context.Background(), deviceID, *body.Temperature)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) || errors.Is(err, device.ErrNotSensor) {
			b.logger.Debug("dropping telemetry for unregistered device",
				"device_id", deviceID, "error", err)
			return nil
		}
		return fmt.Errorf("applying telemetry for %s: %w", deviceID, err)
	}

	b.hub.BroadcastTemperature(rec.DeviceID, rec.Sensor.Temperature)
	b.MirrorRecord(rec)
	return nil
}

// MirrorRecord publishes a record's current state as a retained message.
// Implements hub.Mirror. Publish failures are logged and dropped; the
// retained topic self-heals on the next change after reconnect.
func (b *Bridge) MirrorRecord(rec *device.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		b.logger.Error("marshalling state mirror failed",
			"device_id", rec.DeviceID, "error", err)
		return
	}

	topic := b.topics.State(rec.DeviceID)
	if err := b.broker.PublishRetained(topic, data); err != nil {
		b.logger.Warn("publishing state mirror failed",
			"device_id", rec.DeviceID, "topic", topic, "error", err)
	}
}
