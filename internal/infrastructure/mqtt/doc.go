// Package mqtt wraps paho.mqtt.golang for the optional telemetry bridge.
//
// The client handles connection lifecycle (auto-reconnect with
// exponential backoff, Last Will and Testament on
// ventsync/system/status), tracks subscriptions so they survive
// reconnection, and wraps message handlers with panic recovery.
//
// Topic layout:
//
//	ventsync/telemetry/{deviceId}  inbound sensor readings (bridge subscribes)
//	ventsync/state/{deviceId}      outbound state mirror (retained)
//	ventsync/system/status         hub online/offline status (retained, LWT)
//
// Use the Topics helpers rather than formatting topic strings by hand.
package mqtt
