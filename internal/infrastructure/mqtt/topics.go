package mqtt

import "fmt"

// Topic prefixes for the ventsync MQTT namespace.
//
// Telemetry flows in from out-of-band sensors on
// ventsync/telemetry/{deviceId}; authoritative state is mirrored out on
// ventsync/state/{deviceId} as retained messages.
const (
	// TopicPrefix is the base for all ventsync topics.
	TopicPrefix = "ventsync"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "ventsync/system"
)

// Topics provides builders for ventsync MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// Telemetry returns the inbound telemetry topic for a device.
//
// Example: ventsync/telemetry/sensor-attic-01
func (Topics) Telemetry(deviceID string) string {
	return fmt.Sprintf("%s/telemetry/%s", TopicPrefix, deviceID)
}

// State returns the outbound state mirror topic for a device.
//
// Example: ventsync/state/vent-bedroom-02
func (Topics) State(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// SystemStatus returns the hub status topic (online/offline, LWT).
//
// Example: ventsync/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllTelemetry returns a pattern matching telemetry from every device.
//
// Pattern: ventsync/telemetry/+
func (Topics) AllTelemetry() string {
	return fmt.Sprintf("%s/telemetry/+", TopicPrefix)
}

// AllStates returns a pattern matching every device state mirror.
//
// Pattern: ventsync/state/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// DeviceFromTelemetry extracts the device ID from a telemetry topic.
// Returns an empty string if the topic is not a telemetry topic.
func (Topics) DeviceFromTelemetry(topic string) string {
	prefix := TopicPrefix + "/telemetry/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	id := topic[len(prefix):]
	for i := 0; i < len(id); i++ {
		if id[i] == '/' {
			return ""
		}
	}
	return id
}
