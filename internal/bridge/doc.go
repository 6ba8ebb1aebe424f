// Package bridge links the device record store to MQTT.
//
// Sensors that cannot hold a WebSocket open publish readings to
// ventsync/telemetry/{deviceId}; the bridge applies them to the store
// and broadcasts them to connected clients. In the other direction,
// every record change is mirrored to ventsync/state/{deviceId} as a
// retained message.
//
// The bridge is optional and only constructed when MQTT is enabled in
// config. It never creates device records: a reading for an unknown
// device is dropped until that device registers over WebSocket.
package bridge
