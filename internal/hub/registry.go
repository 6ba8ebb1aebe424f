package hub

import "sync"

// Registry tracks live connections and the device identity each one holds.
//
// A connection is attached anonymously on accept and may later claim a
// device ID. Claims are last-write-wins: a reconnecting device replaces
// the previous holder of its ID, and the older connection, if still open,
// simply stops being addressable by that ID.
//
// All methods are safe for concurrent use. Registry operations are O(1)
// and never block on I/O, so one coarse mutex covers all maps.
type Registry struct {
	mu       sync.RWMutex
	conns    map[*Conn]struct{}
	byDevice map[string]*Conn
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[*Conn]struct{}),
		byDevice: make(map[string]*Conn),
	}
}

// Attach registers a new anonymous connection.
func (r *Registry) Attach(c *Conn) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
}

// Claim binds deviceID to c, silently overwriting any prior binding for
// that ID. Devices resend register on every boot, so re-claiming is the
// expected path, not an error.
func (r *Registry) Claim(c *Conn, deviceID string) {
	r.mu.Lock()
	r.byDevice[deviceID] = c
	r.mu.Unlock()
}

// Resolve returns the connection currently bound to deviceID.
func (r *Registry) Resolve(deviceID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byDevice[deviceID]
	return c, ok
}

// Release removes c from all maps. If c is the current holder of a device
// ID, that ID becomes unresolved until the next Claim. Releasing never
// touches the device record store.
//
// It reports whether c was still attached, so the caller closes the send
// channel exactly once even when release races shutdown.
func (r *Registry) Release(c *Conn) (existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed = r.conns[c]
	delete(r.conns, c)

	if deviceID := c.DeviceID(); deviceID != "" {
		// Only unbind if c is still the current holder; a newer
		// connection may have claimed the ID since.
		if r.byDevice[deviceID] == c {
			delete(r.byDevice, deviceID)
		}
	}
	return existed
}

// Snapshot returns the current connection list for fan-out. The caller
// gets its own slice; broadcast writes happen outside the registry lock.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
