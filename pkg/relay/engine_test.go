package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/air-relay/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle records everything sent through it and can be told to fail
type fakeHandle struct {
	name     string
	mu       sync.Mutex
	sent     [][]byte
	sendErr  error
	closeErr error
	closed   int
}

func (f *fakeHandle) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return f.closeErr
}

func (f *fakeHandle) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeHandle) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

func (f *fakeHandle) receivedTypes(t *testing.T) []string {
	t.Helper()
	var types []string
	for _, payload := range f.received() {
		env, err := protocol.Decode(payload)
		require.NoError(t, err)
		types = append(types, env.Type)
	}
	return types
}

func newTestEngine() *Engine {
	return NewEngine(NewRegistry(), nil)
}

func TestAdmitConfirmsAndBroadcasts(t *testing.T) {
	e := newTestEngine()

	first := &fakeHandle{name: "pc"}
	client := e.Admit(first, "Mozilla/5.0 (Windows NT 10.0)")
	assert.Equal(t, "client_1", client.ID)
	assert.Equal(t, DevicePC, client.DeviceType)

	// Confirmation first, then its own connected broadcast
	require.Equal(t, []string{protocol.TypeConnected, protocol.TypeConnectionEvent}, first.receivedTypes(t))

	var confirmation protocol.Connected
	require.NoError(t, json.Unmarshal(first.received()[0], &confirmation))
	assert.Equal(t, "client_1", confirmation.ClientID)
	assert.Equal(t, "pc", confirmation.DeviceType)

	// A later admission is announced to everyone already connected
	second := &fakeHandle{name: "mobile"}
	e.Admit(second, "ReactNative/0.72 (iPhone)")

	events := first.receivedTypes(t)
	require.Len(t, events, 3)
	var event protocol.ConnectionEvent
	require.NoError(t, json.Unmarshal(first.received()[2], &event))
	assert.Equal(t, "client_2", event.ClientID)
	assert.Equal(t, "mobile", event.DeviceType)
	assert.Equal(t, protocol.EventConnected, event.Event)
}

func TestPingAnsweredDirectly(t *testing.T) {
	e := newTestEngine()

	pc := &fakeHandle{name: "pc"}
	mobile := &fakeHandle{name: "mobile"}
	e.Admit(pc, "")
	e.Admit(mobile, "Android")
	pc.reset()
	mobile.reset()

	require.NoError(t, e.HandleMessage(pc, []byte(`{"type":"ping"}`)))

	assert.Equal(t, []string{protocol.TypePong}, pc.receivedTypes(t))
	assert.Empty(t, mobile.received(), "pings must not be relayed")
	assert.Equal(t, 1, e.Registry().Count(DevicePC))
	assert.Equal(t, 1, e.Registry().Count(DeviceMobile))
}

func TestFanOutToOppositeClass(t *testing.T) {
	e := newTestEngine()

	pc := &fakeHandle{name: "pc"}
	mobile1 := &fakeHandle{name: "mobile1"}
	mobile2 := &fakeHandle{name: "mobile2"}
	e.Admit(pc, "")
	e.Admit(mobile1, "Android")
	e.Admit(mobile2, "iPhone")
	pc.reset()
	mobile1.reset()
	mobile2.reset()

	payload := []byte(`{"type":"note_on","string":3,"fret":5}`)
	require.NoError(t, e.HandleMessage(pc, payload))

	// Both mobiles receive the exact payload; the pc sender receives nothing
	require.Len(t, mobile1.received(), 1)
	require.Len(t, mobile2.received(), 1)
	assert.Equal(t, payload, mobile1.received()[0])
	assert.Equal(t, payload, mobile2.received()[0])
	assert.Empty(t, pc.received())

	// And the reverse direction
	mobile1.reset()
	mobile2.reset()
	reply := []byte(`{"type":"chord_change","chord":"Am"}`)
	require.NoError(t, e.HandleMessage(mobile1, reply))

	require.Len(t, pc.received(), 1)
	assert.Equal(t, reply, pc.received()[0])
	assert.Empty(t, mobile1.received())
	assert.Empty(t, mobile2.received(), "messages never loop back into the sender's class")
}

func TestSenderOrderPreserved(t *testing.T) {
	e := newTestEngine()

	pc := &fakeHandle{name: "pc"}
	mobile := &fakeHandle{name: "mobile"}
	e.Admit(pc, "")
	e.Admit(mobile, "Android")
	mobile.reset()

	for i := 0; i < 5; i++ {
		payload, _ := json.Marshal(map[string]interface{}{"type": "seq", "n": i})
		require.NoError(t, e.HandleMessage(pc, payload))
	}

	received := mobile.received()
	require.Len(t, received, 5)
	for i, payload := range received {
		var msg struct {
			N int `json:"n"`
		}
		require.NoError(t, json.Unmarshal(payload, &msg))
		assert.Equal(t, i, msg.N)
	}
}

func TestUnknownSenderDropped(t *testing.T) {
	e := newTestEngine()

	mobile := &fakeHandle{name: "mobile"}
	e.Admit(mobile, "Android")
	mobile.reset()

	stranger := &fakeHandle{name: "stranger"}
	require.NoError(t, e.HandleMessage(stranger, []byte(`{"type":"note_on"}`)))

	assert.Empty(t, mobile.received(), "messages from unknown senders are dropped")
	assert.Empty(t, stranger.received(), "unknown senders get no reply")
}

func TestMalformedFrameRejected(t *testing.T) {
	e := newTestEngine()

	pc := &fakeHandle{name: "pc"}
	e.Admit(pc, "")

	assert.Error(t, e.HandleMessage(pc, []byte("not json")))
	assert.Error(t, e.HandleMessage(pc, []byte(`{"type":42}`)))
}

func TestSendFailureDoesNotAbortFanOut(t *testing.T) {
	e := newTestEngine()

	pc := &fakeHandle{name: "pc"}
	broken := &fakeHandle{name: "broken", sendErr: errors.New("write: broken pipe")}
	healthy := &fakeHandle{name: "healthy"}
	e.Admit(pc, "")
	e.Admit(broken, "Android")
	e.Admit(healthy, "iPhone")
	healthy.reset()

	payload := []byte(`{"type":"note_on"}`)
	require.NoError(t, e.HandleMessage(pc, payload), "recipient failures never reach the sender")

	require.Len(t, healthy.received(), 1)
	assert.Equal(t, payload, healthy.received()[0])
}

func TestDisconnectBroadcastsOnce(t *testing.T) {
	e := newTestEngine()

	pc := &fakeHandle{name: "pc"}
	mobile := &fakeHandle{name: "mobile"}
	e.Admit(pc, "")
	departing := &fakeHandle{name: "departing"}
	departed := e.Admit(departing, "Android")
	e.Admit(mobile, "iPhone")
	pc.reset()
	mobile.reset()

	e.Disconnect(departing)

	assert.Equal(t, 1, e.Registry().Count(DeviceMobile))

	for _, h := range []*fakeHandle{pc, mobile} {
		received := h.received()
		require.Len(t, received, 1)
		var event protocol.ConnectionEvent
		require.NoError(t, json.Unmarshal(received[0], &event))
		assert.Equal(t, departed.ID, event.ClientID)
		assert.Equal(t, protocol.EventDisconnected, event.Event)
	}

	// A second disconnect of the same handle produces no further broadcast
	e.Disconnect(departing)
	assert.Len(t, pc.received(), 1)
	assert.Len(t, mobile.received(), 1)
}

func TestShutdownClosesEverything(t *testing.T) {
	e := newTestEngine()

	handles := []*fakeHandle{
		{name: "a"},
		{name: "b", closeErr: errors.New("close failed")},
		{name: "c"},
	}
	e.Admit(handles[0], "")
	e.Admit(handles[1], "Android")
	e.Admit(handles[2], "iPhone")

	e.Shutdown()

	for _, h := range handles {
		assert.Equal(t, 1, h.closed, "every handle closed exactly once")
	}
	assert.Equal(t, 0, e.Registry().Count(DeviceMobile))
	assert.Equal(t, 0, e.Registry().Count(DevicePC))
}
