package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/air-relay/pkg/logging"
	"github.com/gorilla/websocket"
)

var (
	errConnClosed    = errors.New("connection closed")
	errSendQueueFull = errors.New("send queue full")
)

// wsHandle adapts a gorilla WebSocket connection to the relay's Handle. All
// writes funnel through a buffered queue drained by a single writer
// goroutine, so fan-out never blocks on a slow receiver and the socket never
// sees concurrent writes.
type wsHandle struct {
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func newWSHandle(conn *websocket.Conn, bufferSize int, writeTimeout time.Duration) *wsHandle {
	return &wsHandle{
		conn:         conn,
		send:         make(chan []byte, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// Send queues a payload for delivery. A full queue is reported as a send
// failure instead of blocking the caller.
func (h *wsHandle) Send(payload []byte) error {
	select {
	case <-h.done:
		return errConnClosed
	default:
	}
	select {
	case h.send <- payload:
		return nil
	case <-h.done:
		return errConnClosed
	default:
		return errSendQueueFull
	}
}

// Close tears the connection down. Safe to call multiple times.
func (h *wsHandle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.done)
		err = h.conn.Close()
	})
	return err
}

// writePump drains the send queue and keeps the liveness ping cadence. It
// owns all writes to the socket.
func (h *wsHandle) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-h.send:
			_ = h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := h.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = h.Close()
				return
			}
		case <-ticker.C:
			if err := h.conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(h.writeTimeout)); err != nil {
				_ = h.Close()
				return
			}
		case <-h.done:
			deadline := time.Now().Add(h.writeTimeout)
			_ = h.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

// handleWebSocket upgrades the connection, admits it into the relay, and
// runs the read loop until the peer goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients (the mobile app) send no Origin header
			return origin == "" || s.originAllowed(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logf("[ws] upgrade failed (remote=%s err=%v)", r.RemoteAddr, err)
		return
	}

	handle := newWSHandle(conn, s.cfg.Server.SendBufferSize, s.cfg.GetWriteTimeout())
	go handle.writePump(s.cfg.GetPingInterval())

	client := s.engine.Admit(handle, r.Header.Get("User-Agent"))

	pongWait := s.cfg.GetPongTimeout()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Logf("[ws] read error (client=%s err=%v)", client.ID, err)
			}
			break
		}
		if err := s.engine.HandleMessage(handle, data); err != nil {
			logging.Logf("[ws] protocol error (client=%s err=%v)", client.ID, err)
			break
		}
	}

	s.engine.Disconnect(handle)
	_ = handle.Close()
}
