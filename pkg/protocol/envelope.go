package protocol

import (
	"encoding/json"
	"fmt"
)

// Message types on the relay WebSocket. Anything other than TypePing is an
// application message and is relayed verbatim to the opposite device class.
const (
	TypePing            = "ping"
	TypePong            = "pong"
	TypeConnected       = "connected"
	TypeConnectionEvent = "connection_event"
)

// Connection lifecycle events carried by TypeConnectionEvent messages.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// Envelope is the decoded header of an inbound frame. Payload keeps the raw
// bytes so application messages pass through the relay untouched.
type Envelope struct {
	Type    string
	Payload []byte
}

// Decode reads the "type" discriminator from a frame. The rest of the frame
// is not validated; it stays opaque in Payload.
func Decode(data []byte) (Envelope, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %v", err)
	}
	return Envelope{Type: head.Type, Payload: data}, nil
}

// IsPing reports whether the frame is a liveness probe
func (e Envelope) IsPing() bool {
	return e.Type == TypePing
}

// Connected is the admission confirmation sent to a newly accepted client
type Connected struct {
	Type       string `json:"type"`
	ClientID   string `json:"client_id"`
	DeviceType string `json:"device_type"`
}

// ConnectionEvent is the lifecycle notification broadcast to every client
type ConnectionEvent struct {
	Type       string `json:"type"`
	ClientID   string `json:"client_id"`
	DeviceType string `json:"device_type"`
	Event      string `json:"event"`
}

// EncodePong formats a liveness acknowledgment
func EncodePong() []byte {
	b, _ := json.Marshal(struct {
		Type string `json:"type"`
	}{Type: TypePong})
	return b
}

// EncodeConnected formats the admission confirmation for a client
func EncodeConnected(clientID, deviceType string) []byte {
	b, _ := json.Marshal(Connected{
		Type:       TypeConnected,
		ClientID:   clientID,
		DeviceType: deviceType,
	})
	return b
}

// EncodeConnectionEvent formats a connect/disconnect lifecycle broadcast
func EncodeConnectionEvent(clientID, deviceType, event string) []byte {
	b, _ := json.Marshal(ConnectionEvent{
		Type:       TypeConnectionEvent,
		ClientID:   clientID,
		DeviceType: deviceType,
		Event:      event,
	})
	return b
}
