package device

import "fmt"

// maxDeviceIDLength bounds device IDs; IDs are externally assigned but a
// runaway value should not reach the database or broadcast payloads.
const maxDeviceIDLength = 128

// validateRegistration checks a registration for structural problems
// before it touches the record store.
func validateRegistration(reg Registration) error {
	if err := ValidateDeviceID(reg.DeviceID); err != nil {
		return err
	}
	if !reg.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, reg.Type)
	}
	if reg.MinAngle != nil && reg.MaxAngle != nil && *reg.MinAngle > *reg.MaxAngle {
		return fmt.Errorf("%w: min %d > max %d", ErrInvalidBounds, *reg.MinAngle, *reg.MaxAngle)
	}
	return nil
}

// ValidateDeviceID checks that a device ID is non-empty and within bounds.
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDeviceID)
	}
	if len(deviceID) > maxDeviceIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidDeviceID, maxDeviceIDLength)
	}
	return nil
}
