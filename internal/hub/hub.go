package hub

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/airloom/ventsync/internal/device"
	"github.com/airloom/ventsync/internal/infrastructure/config"
	"github.com/airloom/ventsync/internal/infrastructure/logging"
)

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware.
		return true
	},
}

// Hub accepts device and viewer connections, routes their messages through
// the record store, and fans resulting events back out to the right subset
// of connections.
//
// Each connection's inbound messages are processed strictly in arrival
// order on that connection's read goroutine; no ordering is guaranteed
// between messages arriving on different connections.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	store    *device.Store
	registry *Registry

	// mirror, when set, receives every record change for out-of-band
	// publication. Set during wiring, before the hub starts serving.
	mirror Mirror
}

// Mirror receives record changes for publication outside the WebSocket
// fan-out, such as retained MQTT state topics.
type Mirror interface {
	MirrorRecord(rec *device.Record)
}

// New creates a hub backed by the given record store.
func New(cfg config.WebSocketConfig, store *device.Store, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: NewRegistry(),
	}
}

// SetMirror wires an out-of-band state mirror. Must be called before the
// hub starts accepting connections.
func (h *Hub) SetMirror(m Mirror) {
	h.mirror = m
}

// mirrorRecord forwards a record change to the mirror, if one is wired.
func (h *Hub) mirrorRecord(rec *device.Record) {
	if h.mirror != nil {
		h.mirror.MirrorRecord(rec)
	}
}

// Registry exposes the connection registry, mainly for tests and metrics.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run blocks until the context is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// HandleWebSocket upgrades an HTTP request to a WebSocket connection and
// attaches it to the hub. Devices and viewers share this endpoint; a
// connection only becomes a device by sending a register message.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newConn(h, ws, h.cfg.SendBufferSize)
	h.registry.Attach(c)
	h.logger.Debug("connection accepted", "conn_id", c.id, "connections", h.registry.Count())

	go c.writePump()
	go c.readPump()
}

// drop releases a connection on disconnect. Only the goroutine that
// actually removes the connection closes the send channel, preventing
// double-close panics when disconnect races shutdown.
func (h *Hub) drop(c *Conn) {
	if h.registry.Release(c) {
		close(c.send)
	}
	h.logger.Debug("connection released",
		"conn_id", c.id,
		"device_id", c.DeviceID(),
		"connections", h.registry.Count(),
	)
}

// closeAll disconnects all clients and closes their send channels so
// writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	for _, c := range h.registry.Snapshot() {
		if h.registry.Release(c) {
			close(c.send)
		}
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// broadcast serialises msg once and writes it to every live connection
// except the excluded one (nil means no exclusion). The connection list is
// snapshotted first so no registry lock is held during the writes; a write
// to a dead connection is a silent skip and never aborts the fan-out.
func (h *Hub) broadcast(msg any, excluding *Conn) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshalling broadcast failed", "error", err)
		return
	}

	sent := 0
	for _, c := range h.registry.Snapshot() {
		if c == excluding {
			continue
		}
		c.trySend(data)
		sent++
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "recipients", sent)
	}
}

// BroadcastRecord pushes the full merged record to every connection.
// Used by the arrangement interface and the MQTT bridge, where there is
// no originating connection to exclude.
func (h *Hub) BroadcastRecord(rec *device.Record) {
	h.broadcast(newRegisterEvent(rec), nil)
	h.mirrorRecord(rec)
}

// BroadcastTemperature pushes a sensor reading to every connection.
// Used by the MQTT bridge for readings that did not arrive on a
// WebSocket connection.
func (h *Hub) BroadcastTemperature(deviceID string, celsius float64) {
	h.broadcast(tempUpdateEvent{
		Type:        MsgTypeTempUpdate,
		DeviceID:    deviceID,
		Temperature: celsius,
	}, nil)
}
