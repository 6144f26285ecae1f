// Package server manages individual WebSocket sessions, handling read/write
// pumps, liveness probing, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Session represents one authenticated WebSocket connection. It owns the
// transport handle exclusively; room membership and the closed flag are
// guarded by the hub's mutex.
type Session struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	id     string
	userID string
	addr   string
	rooms  map[string]struct{}
	closed bool
}

// newSession creates a Session for an authenticated connection. The send
// channel is buffered to absorb broadcast bursts; the read limit caps
// inbound frame size.
func newSession(conn *websocket.Conn, hub *Hub, userID, addr string) *Session {
	if conn != nil {
		conn.SetReadLimit(hub.cfg.MaxMessageSize)
	}

	return &Session{
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    hub,
		id:     uuid.NewString()[:8],
		userID: userID,
		addr:   addr,
		rooms:  make(map[string]struct{}),
	}
}

// setupReadDeadline arms the liveness deadline and the pong handler that
// extends it. A peer that stops answering probes is closed by the deadline.
func (s *Session) setupReadDeadline() {
	timeout := s.hub.cfg.PongTimeout
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		s.hub.log.Warn("failed to set read deadline",
			zap.String("session", s.id), zap.Error(err))
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(timeout))
	})
}

// logReadError records why the read loop is terminating, distinguishing
// normal disconnects from unexpected transport failures.
func (s *Session) logReadError(err error) {
	fields := []zap.Field{
		zap.String("session", s.id),
		zap.String("user", s.userID),
		zap.String("addr", s.addr),
		zap.Error(err),
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.hub.log.Warn("inbound frame exceeded maximum size", fields...)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		s.hub.log.Info("session disconnected", fields...)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		s.hub.log.Info("session connection closed", fields...)
	default:
		s.hub.log.Warn("websocket read error", fields...)
	}
}

// readPump consumes inbound frames and dispatches them through the protocol
// state machine. It exits on any read error; teardown always funnels through
// the hub's unregister path.
func (s *Session) readPump() {
	defer func() {
		// The hub loop may already be gone during shutdown; never block on it.
		select {
		case s.hub.unregister <- s:
		case <-s.hub.ctx.Done():
		}
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.hub.log.Warn("error closing connection in readPump",
				zap.String("session", s.id), zap.Error(err))
		}
	}()

	s.setupReadDeadline()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)
			break
		}
		s.hub.dispatch(s, raw)
	}
}

// writePump drains the send channel and emits the periodic liveness probe.
// It exits when the send channel is closed or a write fails.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.hub.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.hub.log.Warn("error closing connection in writePump",
				zap.String("session", s.id), zap.Error(err))
		}
	}()

	for {
		select {
		case payload, ok := <-s.send:
			if !s.writeFrame(payload, ok) {
				return
			}
		case <-ticker.C:
			if !s.writePing() {
				return
			}
		}
	}
}

// writeFrame writes one outbound frame plus any frames already queued,
// returning false when the pump should stop.
func (s *Session) writeFrame(payload []byte, ok bool) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.hub.log.Warn("error setting write deadline",
			zap.String("session", s.id), zap.Error(err))
		return false
	}

	if !ok {
		// Send channel closed by the hub; tell the peer we are done.
		if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			s.hub.log.Warn("error writing close message",
				zap.String("session", s.id), zap.Error(err))
		}
		return false
	}

	w, err := s.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		s.hub.log.Warn("error creating writer",
			zap.String("session", s.id), zap.Error(err))
		return false
	}

	if _, err := w.Write(payload); err != nil {
		s.hub.log.Warn("error writing frame",
			zap.String("session", s.id), zap.Error(err))
		return false
	}

	// Flush anything already buffered, one frame per line.
	n := len(s.send)
	for i := 0; i < n; i++ {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return false
		}
		if _, err := w.Write(<-s.send); err != nil {
			return false
		}
	}

	if err := w.Close(); err != nil {
		s.hub.log.Warn("error closing writer",
			zap.String("session", s.id), zap.Error(err))
		return false
	}
	return true
}

// writePing sends the transport-level liveness probe.
func (s *Session) writePing() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			s.hub.log.Warn("error writing ping",
				zap.String("session", s.id), zap.Error(err))
		}
		return false
	}
	return true
}
