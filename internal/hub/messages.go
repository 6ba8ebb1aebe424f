package hub

import (
	"github.com/airloom/ventsync/internal/device"
)

// Message type constants for the wire protocol. One JSON message per frame.
const (
	MsgTypeRegister   = "register"
	MsgTypeSetAngle   = "setAngle"
	MsgTypeTempUpdate = "tempUpdate"
	MsgTypeAngleSet   = "angleSet"
)

// envelope is the inbound wire format. Optional fields are pointers so a
// missing field is distinguishable from a zero value.
type envelope struct {
	Type         string       `json:"type"`
	DeviceID     string       `json:"deviceId"`
	DeviceType   string       `json:"deviceType,omitempty"`
	CurrentAngle *int         `json:"currentAngle,omitempty"`
	CurrentTemp  *float64     `json:"currentTemp,omitempty"`
	Config       *angleConfig `json:"config,omitempty"`
	Angle        *int         `json:"angle,omitempty"`
	Temperature  *float64     `json:"temperature,omitempty"`
}

// angleConfig carries a vent's device-declared mechanical bounds.
type angleConfig struct {
	MinAngle *int `json:"minAngle"`
	MaxAngle *int `json:"maxAngle"`
}

// registerEvent is the outbound broadcast after a registration or
// placement change: the full merged record.
type registerEvent struct {
	Type        string           `json:"type"`
	DeviceID    string           `json:"deviceId"`
	DeviceType  device.Type      `json:"deviceType"`
	Alias       string           `json:"alias"`
	Color       string           `json:"color"`
	Floor       string           `json:"floor"`
	Assigned    bool             `json:"assigned"`
	Position    *device.Position `json:"position"`
	Angle       *int             `json:"angle,omitempty"`
	MinAngle    *int             `json:"minAngle,omitempty"`
	MaxAngle    *int             `json:"maxAngle,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// newRegisterEvent flattens a record into the outbound register payload.
func newRegisterEvent(rec *device.Record) registerEvent {
	ev := registerEvent{
		Type:       MsgTypeRegister,
		DeviceID:   rec.DeviceID,
		DeviceType: rec.Type,
		Alias:      rec.Alias,
		Color:      rec.Color,
		Floor:      rec.Floor,
		Assigned:   rec.Assigned,
		Position:   rec.Position,
	}
	if rec.Vent != nil {
		angle := rec.Vent.Angle
		ev.Angle = &angle
		ev.MinAngle = rec.Vent.MinAngle
		ev.MaxAngle = rec.Vent.MaxAngle
	}
	if rec.Sensor != nil {
		temp := rec.Sensor.Temperature
		ev.Temperature = &temp
	}
	return ev
}

// angleSetEvent confirms a setAngle command round-tripped to canonical state.
type angleSetEvent struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId"`
	Angle    int    `json:"angle"`
}

// tempUpdateEvent forwards a sensor reading to viewers.
type tempUpdateEvent struct {
	Type        string  `json:"type"`
	DeviceID    string  `json:"deviceId"`
	Temperature float64 `json:"temperature"`
}
