package relay

import (
	"github.com/air-relay/pkg/logging"
	"github.com/air-relay/pkg/metrics"
	"github.com/air-relay/pkg/protocol"
)

// Engine relays messages between mobile and PC clients. A message from one
// device class fans out to every client of the opposite class; the engine
// never inspects application payloads beyond the envelope type. Delivery is
// best effort: a failed send to one recipient is logged and skipped, never
// surfaced to the sender.
type Engine struct {
	registry  *Registry
	collector *metrics.Collector
}

// NewEngine creates a relay engine over a registry. The collector may be nil.
func NewEngine(registry *Registry, collector *metrics.Collector) *Engine {
	return &Engine{
		registry:  registry,
		collector: collector,
	}
}

// Registry returns the engine's connection registry
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Admit classifies and registers a new connection, confirms the admission to
// the client, and broadcasts a connected lifecycle event to everyone.
func (e *Engine) Admit(h Handle, userAgent string) *Client {
	deviceType := DetectDeviceType(userAgent)
	client := e.registry.Admit(h, deviceType, userAgent)

	if deviceType == DeviceMobile {
		logging.Logf("[relay] mobile device connected: %s", client.ID)
	} else {
		logging.Logf("[relay] pc connected: %s", client.ID)
	}
	if e.collector != nil {
		e.collector.RecordConnect(string(deviceType))
	}

	// Confirmation failures are not fatal here: the transport will report the
	// broken connection through its read loop and the normal disconnect path.
	if err := h.Send(protocol.EncodeConnected(client.ID, string(deviceType))); err != nil {
		logging.Logf("[relay] failed to send admission confirmation to %s: %v", client.ID, err)
	}

	e.broadcastConnectionEvent(client.ID, deviceType, protocol.EventConnected)
	return client
}

// HandleMessage processes one inbound frame from a handle. Liveness probes
// are answered directly; every other message type is relayed verbatim to the
// opposite device class. The returned error is non-nil only for frames that
// cannot be decoded at all, which the transport treats as a protocol error.
func (e *Engine) HandleMessage(h Handle, data []byte) error {
	envelope, err := protocol.Decode(data)
	if err != nil {
		return err
	}

	if envelope.IsPing() {
		if e.collector != nil {
			e.collector.RecordPing()
		}
		if err := h.Send(protocol.EncodePong()); err != nil {
			logging.Logf("[relay] failed to send pong: %v", err)
		}
		return nil
	}

	sender, ok := e.registry.Lookup(h)
	if !ok {
		logging.Logf("[relay] dropping message from unknown sender (type=%s)", envelope.Type)
		if e.collector != nil {
			e.collector.RecordUnknownSender()
		}
		return nil
	}

	target := DevicePC
	if sender.DeviceType == DevicePC {
		target = DeviceMobile
	}
	e.sendToAll(target, envelope.Payload)

	if e.collector != nil {
		e.collector.RecordRelayedMessage(string(sender.DeviceType))
	}
	return nil
}

// Disconnect removes a connection and broadcasts a disconnected lifecycle
// event to the remaining clients. Safe to call more than once per handle;
// only the first call has any effect.
func (e *Engine) Disconnect(h Handle) {
	client, ok := e.registry.Remove(h)
	if !ok {
		return
	}

	logging.Logf("[relay] %s disconnected: %s", client.DeviceType, client.ID)
	if e.collector != nil {
		e.collector.RecordDisconnect(string(client.DeviceType))
	}
	e.broadcastConnectionEvent(client.ID, client.DeviceType, protocol.EventDisconnected)
}

// Shutdown closes every live connection and empties the registry. Individual
// close failures are logged and do not block closing the rest.
func (e *Engine) Shutdown() {
	handles := e.registry.Clear()
	for _, h := range handles {
		if err := h.Close(); err != nil {
			logging.Logf("[relay] error closing connection: %v", err)
		}
	}
	logging.Logf("[relay] all clients disconnected (closed=%d)", len(handles))
}

// ConnectedCounts returns live connection counts keyed by device type
func (e *Engine) ConnectedCounts() map[string]int {
	return map[string]int{
		string(DeviceMobile): e.registry.Count(DeviceMobile),
		string(DevicePC):     e.registry.Count(DevicePC),
	}
}

// sendToAll fans a payload out to every live client of one device type.
// Sends happen on a snapshot, so the registry is never locked during I/O.
func (e *Engine) sendToAll(deviceType DeviceType, payload []byte) {
	for _, client := range e.registry.Snapshot(deviceType) {
		if err := client.Handle.Send(payload); err != nil {
			logging.Logf("[relay] error sending to %s %s: %v", deviceType, client.ID, err)
			if e.collector != nil {
				e.collector.RecordSendFailure(string(deviceType))
			}
		}
	}
}

// broadcastConnectionEvent notifies all clients of both device types
func (e *Engine) broadcastConnectionEvent(clientID string, deviceType DeviceType, event string) {
	payload := protocol.EncodeConnectionEvent(clientID, string(deviceType), event)
	e.sendToAll(DeviceMobile, payload)
	e.sendToAll(DevicePC, payload)
}
