package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn represents one live duplex channel to either a physical device or a
// viewer/control client. A connection is anonymous until its first register
// message names a device ID; it then stays identified as that device for
// its whole lifetime.
type Conn struct {
	hub  *Hub
	conn *websocket.Conn // nil for connections created in tests
	send chan []byte

	// id distinguishes connections in logs; it is not the device ID.
	id string

	mu       sync.RWMutex
	deviceID string // empty while anonymous
}

// newConn creates a connection with a buffered outbound queue.
// The websocket may be nil; pumps are only started for real sockets.
func newConn(h *Hub, ws *websocket.Conn, sendBuffer int) *Conn {
	return &Conn{
		hub:  h,
		conn: ws,
		send: make(chan []byte, sendBuffer),
		id:   uuid.NewString(),
	}
}

// DeviceID returns the device ID this connection registered as, or ""
// while the connection is anonymous.
func (c *Conn) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceID
}

// identify transitions the connection from anonymous to identified.
// The transition happens at most once; repeat calls report whether the
// given device ID matches the identity already held.
func (c *Conn) identify(deviceID string) (transitioned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deviceID != "" {
		return false
	}
	c.deviceID = deviceID
	return true
}

// trySend attempts to queue data for delivery to this connection.
// It silently handles closed channels (connection released during a
// broadcast) and full buffers (slow client); a failed write never
// propagates to the caller.
func (c *Conn) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Buffer full, skip; the connection is slow or dying.
	}
}

// readPump reads messages from the WebSocket and feeds them to the router.
// It owns the disconnect path: when the read loop exits for any reason the
// connection is released from the registry and the socket closed.
func (c *Conn) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "conn_id", c.id, "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "conn_id", c.id, "error", err)
			}
			return
		}
		// Any message resets the read deadline (keeps the connection
		// alive even if the client never answers protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.hub.handleMessage(c, message)
	}
}

// writePump drains the send queue onto the WebSocket and emits pings.
func (c *Conn) writePump() {
	cfg := c.hub.cfg
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
