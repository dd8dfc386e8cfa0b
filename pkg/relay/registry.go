package relay

import (
	"fmt"
	"sync"
)

// Handle is the transport endpoint of one client connection. The relay never
// touches the underlying socket; it only sends opaque payloads and closes the
// handle on shutdown. Send must not block indefinitely on a slow receiver.
type Handle interface {
	Send(payload []byte) error
	Close() error
}

// Client is one live connection tracked by the registry.
type Client struct {
	ID         string
	DeviceType DeviceType
	UserAgent  string // retained for diagnostics only
	Handle     Handle
}

// Registry tracks live connections partitioned by device type. A client ID is
// present in at most one partition at any time. All methods are safe for
// concurrent use; snapshots are copies, so callers iterate and send without
// holding the registry lock.
type Registry struct {
	lock     sync.RWMutex
	mobile   map[string]*Client
	pc       map[string]*Client
	byHandle map[Handle]*Client
	counter  uint64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		mobile:   make(map[string]*Client),
		pc:       make(map[string]*Client),
		byHandle: make(map[Handle]*Client),
	}
}

func (r *Registry) partition(deviceType DeviceType) map[string]*Client {
	if deviceType == DeviceMobile {
		return r.mobile
	}
	return r.pc
}

// Admit registers a handle under a freshly minted client ID and returns the
// new client. IDs are monotonic and never reused within the process lifetime.
func (r *Registry) Admit(h Handle, deviceType DeviceType, userAgent string) *Client {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.counter++
	client := &Client{
		ID:         fmt.Sprintf("client_%d", r.counter),
		DeviceType: deviceType,
		UserAgent:  userAgent,
		Handle:     h,
	}
	r.partition(deviceType)[client.ID] = client
	r.byHandle[h] = client
	return client
}

// Lookup finds the live client for a handle without removing it
func (r *Registry) Lookup(h Handle) (*Client, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	client, ok := r.byHandle[h]
	return client, ok
}

// Remove deletes the client registered for a handle and returns it. Removing
// a handle that was never registered, or already removed, is a no-op.
func (r *Registry) Remove(h Handle) (*Client, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	client, ok := r.byHandle[h]
	if !ok {
		return nil, false
	}
	delete(r.byHandle, h)
	delete(r.partition(client.DeviceType), client.ID)
	return client, true
}

// Snapshot returns a point-in-time copy of the live clients of one device
// type, in no particular order.
func (r *Registry) Snapshot(deviceType DeviceType) []*Client {
	r.lock.RLock()
	defer r.lock.RUnlock()

	part := r.partition(deviceType)
	clients := make([]*Client, 0, len(part))
	for _, client := range part {
		clients = append(clients, client)
	}
	return clients
}

// Count returns the number of live clients of one device type
func (r *Registry) Count(deviceType DeviceType) int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.partition(deviceType))
}

// Clear empties both partitions and returns every handle that was live, for
// the caller to close.
func (r *Registry) Clear() []Handle {
	r.lock.Lock()
	defer r.lock.Unlock()

	handles := make([]Handle, 0, len(r.byHandle))
	for h := range r.byHandle {
		handles = append(handles, h)
	}
	r.mobile = make(map[string]*Client)
	r.pc = make(map[string]*Client)
	r.byHandle = make(map[Handle]*Client)
	return handles
}
