package hub

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/airloom/ventsync/internal/device"
)

// handleMessage parses one inbound frame and dispatches it. Protocol
// errors (unparseable JSON, unknown type) are logged and the frame is
// dropped; the connection always stays open.
func (h *Hub) handleMessage(c *Conn, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.Warn("dropping malformed message", "conn_id", c.id, "error", err)
		return
	}

	switch env.Type {
	case MsgTypeRegister:
		h.handleRegister(c, env)
	case MsgTypeSetAngle:
		h.handleSetAngle(c, env)
	case MsgTypeTempUpdate:
		h.handleTempUpdate(c, env)
	default:
		h.logger.Warn("dropping message with unknown type",
			"conn_id", c.id, "type", env.Type)
	}
}

// handleRegister merges the registration into the record store, claims the
// device ID for this connection, and broadcasts the merged record to every
// other connection. The sender already knows its own state, so it is
// excluded.
func (h *Hub) handleRegister(c *Conn, env envelope) {
	reg := device.Registration{
		DeviceID:    env.DeviceID,
		Type:        device.Type(env.DeviceType),
		Angle:       env.CurrentAngle,
		Temperature: env.CurrentTemp,
	}
	if env.Config != nil {
		reg.MinAngle = env.Config.MinAngle
		reg.MaxAngle = env.Config.MaxAngle
	}

	rec, err := h.store.UpsertFromRegistration(context.Background(), reg)
	if err != nil {
		h.logger.Warn("dropping invalid registration",
			"conn_id", c.id, "device_id", env.DeviceID, "error", err)
		return
	}

	// The anonymous -> identified transition happens once per connection.
	// Devices resend register on every boot; a repeat register updates the
	// store above but keeps the connection's original identity.
	if c.identify(env.DeviceID) || c.DeviceID() == env.DeviceID {
		h.registry.Claim(c, env.DeviceID)
	} else {
		h.logger.Warn("register for foreign device id on identified connection",
			"conn_id", c.id, "identity", c.DeviceID(), "device_id", env.DeviceID)
	}

	h.broadcast(newRegisterEvent(rec), c)
	h.mirrorRecord(rec)
}

// handleSetAngle applies a viewer's angle command. The canonical write is
// confirmed by echoing angleSet to every connection including the sender,
// so the caller knows the command round-tripped. NotFound and out-of-range
// angles are logged and dropped with no broadcast.
func (h *Hub) handleSetAngle(c *Conn, env envelope) {
	if env.Angle == nil {
		h.logger.Warn("dropping setAngle without angle",
			"conn_id", c.id, "device_id", env.DeviceID)
		return
	}

	rec, err := h.store.SetAngle(context.Background(), env.DeviceID, *env.Angle)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrNotFound):
			h.logger.Warn("setAngle for unknown device",
				"conn_id", c.id, "device_id", env.DeviceID)
		case errors.Is(err, device.ErrAngleOutOfRange):
			h.logger.Warn("setAngle rejected: angle out of range",
				"conn_id", c.id, "device_id", env.DeviceID, "angle", *env.Angle)
		default:
			h.logger.Warn("setAngle failed",
				"conn_id", c.id, "device_id", env.DeviceID, "error", err)
		}
		return
	}

	h.broadcast(angleSetEvent{
		Type:     MsgTypeAngleSet,
		DeviceID: rec.DeviceID,
		Angle:    rec.Vent.Angle,
	}, nil)
	h.mirrorRecord(rec)
}

// handleTempUpdate records a sensor reading and forwards it to every
// connection except the reporting one.
func (h *Hub) handleTempUpdate(c *Conn, env envelope) {
	if env.Temperature == nil {
		h.logger.Warn("dropping tempUpdate without temperature",
			"conn_id", c.id, "device_id", env.DeviceID)
		return
	}

	rec, err := h.store.SetTemperature(context.Background(), env.DeviceID, *env.Temperature)
	if err != nil {
		h.logger.Warn("tempUpdate dropped",
			"conn_id", c.id, "device_id", env.DeviceID, "error", err)
		return
	}

	h.broadcast(tempUpdateEvent{
		Type:        MsgTypeTempUpdate,
		DeviceID:    rec.DeviceID,
		Temperature: rec.Sensor.Temperature,
	}, c)
	h.mirrorRecord(rec)
}
