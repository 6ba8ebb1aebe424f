// Package api implements the HTTP and WebSocket server for VentSync Core.
//
// This package provides:
//   - The WebSocket endpoint devices and viewers connect to
//   - REST endpoints for device listing and arrangement placement
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server sits between clients (vent firmware, sensor firmware, the
// web arrangement UI) and the device record store. Real-time traffic
// flows over the WebSocket hub; the REST surface exists for the
// arrangement UI and for operational checks.
//
// # Security
//
// The server carries no authentication of its own. Connection auth
// belongs to the reverse proxy in front of this service.
package api
