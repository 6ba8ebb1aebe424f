// Package influxdb provides the time-series telemetry sink.
//
// When enabled, sensor temperatures and vent angle changes are written
// as InfluxDB points alongside the authoritative SQLite record. Writes
// are batched and non-blocking so telemetry never backpressures the
// WebSocket message path; async write failures are reported through an
// error callback and logged.
//
// The package is optional: when disabled in config, Connect returns
// ErrDisabled and the rest of the system runs without it.
package influxdb
