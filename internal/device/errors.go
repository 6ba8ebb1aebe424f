package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a device ID has no record.
	ErrNotFound = errors.New("device: not found")

	// ErrAngleOutOfRange is returned when a requested angle falls outside
	// the device-declared [minAngle, maxAngle] bounds. The record is left
	// unchanged; out-of-range angles are rejected, never clamped.
	ErrAngleOutOfRange = errors.New("device: angle out of range")

	// ErrNotVent is returned when an angle operation targets a non-vent record.
	ErrNotVent = errors.New("device: record is not a vent")

	// ErrNotSensor is returned when a temperature update targets a non-sensor record.
	ErrNotSensor = errors.New("device: record is not a sensor")

	// ErrInvalidType is returned when a registration carries an unknown device type.
	ErrInvalidType = errors.New("device: invalid type")

	// ErrInvalidDeviceID is returned when a device ID is empty or malformed.
	ErrInvalidDeviceID = errors.New("device: invalid device id")

	// ErrInvalidPlacement is returned when a placement update breaks the
	// assigned/position invariant (assigned without position or vice versa).
	ErrInvalidPlacement = errors.New("device: invalid placement")

	// ErrInvalidBounds is returned when a registration declares minAngle > maxAngle.
	ErrInvalidBounds = errors.New("device: invalid angle bounds")
)
