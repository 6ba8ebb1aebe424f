package device

import "time"

// Type is the kind of physical device a record describes.
// A record's type is fixed at first registration and never changes.
type Type string

// Type constants.
const (
	TypeVent   Type = "vent"
	TypeSensor Type = "sensor"
)

// Valid reports whether t is a recognised device type.
func (t Type) Valid() bool {
	return t == TypeVent || t == TypeSensor
}

// Default display colors, keyed by device type. These match the colors the
// floor-plan UI assigns to unconfigured markers.
const (
	DefaultVentColor   = "#3b82f6"
	DefaultSensorColor = "#10b981"

	// DefaultFloor is the floor label assigned to new records.
	DefaultFloor = "1"
)

// DefaultColor returns the display color for a newly registered device.
func DefaultColor(t Type) string {
	if t == TypeSensor {
		return DefaultSensorColor
	}
	return DefaultVentColor
}

// Position is a device's placement on a floor plan, in canvas coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// VentState holds the vent-only portion of a record: the current louver
// angle and the device-declared mechanical bounds. Firmware may register
// with an angle before it has declared bounds; nil bounds mean the device
// has not reported them yet and the angle is taken as-is.
type VentState struct {
	Angle    int  `json:"angle"`
	MinAngle *int `json:"minAngle,omitempty"`
	MaxAngle *int `json:"maxAngle,omitempty"`
}

// BoundsKnown reports whether the device has declared both mechanical
// bounds. Angle enforcement only applies once it has.
func (v *VentState) BoundsKnown() bool {
	return v.MinAngle != nil && v.MaxAngle != nil
}

// SensorState holds the sensor-only portion of a record: the last
// reported temperature reading in degrees Celsius.
type SensorState struct {
	Temperature float64 `json:"temperature"`
}

// Record is the canonical state for one physical device, keyed by its
// externally assigned DeviceID. Exactly one of Vent or Sensor is non-nil,
// matching the record's Type.
//
// Invariants:
//   - Assigned == true iff Position != nil.
//   - Vent.Angle lies in [Vent.MinAngle, Vent.MaxAngle] once both bounds
//     have been declared.
type Record struct {
	DeviceID string `json:"deviceId"`
	Type     Type   `json:"deviceType"`

	// Display fields, editable via the arrangement interface.
	Alias    string    `json:"alias"`
	Color    string    `json:"color"`
	Floor    string    `json:"floor"`
	Assigned bool      `json:"assigned"`
	Position *Position `json:"position,omitempty"`

	Vent   *VentState   `json:"vent,omitempty"`
	Sensor *SensorState `json:"sensor,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone creates an independent copy of the Record. Pointer fields are
// duplicated so modifications to the copy never reach the store's cache.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cpy := *r
	if r.Position != nil {
		pos := *r.Position
		cpy.Position = &pos
	}
	if r.Vent != nil {
		vent := *r.Vent
		if r.Vent.MinAngle != nil {
			minAngle := *r.Vent.MinAngle
			vent.MinAngle = &minAngle
		}
		if r.Vent.MaxAngle != nil {
			maxAngle := *r.Vent.MaxAngle
			vent.MaxAngle = &maxAngle
		}
		cpy.Vent = &vent
	}
	if r.Sensor != nil {
		sensor := *r.Sensor
		cpy.Sensor = &sensor
	}
	return &cpy
}

// Registration carries the fields a device reports when it (re)connects.
// Optional fields are pointers; nil means the device did not report them,
// and the store must not clobber previously persisted values.
type Registration struct {
	DeviceID    string
	Type        Type
	Angle       *int
	Temperature *float64
	MinAngle    *int
	MaxAngle    *int
}

// PlacementUpdate carries the fields the external arrangement interface
// may change on a record. Nil fields are left untouched.
type PlacementUpdate struct {
	Alias    *string
	Color    *string
	Floor    *string
	Assigned *bool
	Position *Position
}
