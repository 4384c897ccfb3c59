package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qz-yi/Satha-Choice-sub000/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Session is one live connection. DriverID is empty for customer
// connections; a customer gains scope only by joining an order room.
type Session struct {
	ID       string
	DriverID string
	Role     string

	conn *websocket.Conn
	send chan []byte

	// mu serializes Enqueue against close: a room broadcast may hold a
	// member snapshot taken before the session left the room, so delivery
	// can race the disconnect path.
	mu     sync.Mutex
	closed bool
}

func NewSession(id, driverID, role string, conn *websocket.Conn) *Session {
	return &Session{
		ID:       id,
		DriverID: driverID,
		Role:     role,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
}

// Enqueue hands a frame to the write pump without blocking. A full buffer
// or an already-closed session drops the frame; delivery on the live
// channel is best-effort.
func (s *Session) Enqueue(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.DroppedSends.Inc()
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		observability.DroppedSends.Inc()
		return false
	}
}

// EnqueueEvent marshals and enqueues one envelope.
func (s *Session) EnqueueEvent(event string, data any) bool {
	msg, err := encodeEvent(event, data)
	if err != nil {
		return false
	}
	return s.Enqueue(msg)
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// ReadPump reads envelopes and hands them to the gateway until the
// connection drops. Runs on its own goroutine per connection.
func (s *Session) ReadPump(ctx context.Context, g *Gateway, logger *slog.Logger) {
	defer func() {
		g.Disconnect(ctx, s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", "session_id", s.ID, "error", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Warn("invalid envelope", "session_id", s.ID, "error", err)
			continue
		}
		g.Dispatch(ctx, s, env)
	}
}

// WritePump flushes the send buffer and keeps the connection alive with
// pings. Runs on its own goroutine per connection.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
