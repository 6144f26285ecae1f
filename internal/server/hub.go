// Package server coordinates session registration, room membership, message
// broadcast, and connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abbaskhalil042/co-draw/internal/store"
)

// Hub owns the registry of live sessions and serializes all mutations of it.
// Registration, removal, and broadcast delivery run on the hub's event loop;
// room membership changes take the same mutex the loop uses, so broadcast
// iteration always sees a consistent registry.
type Hub struct {
	cfg      Config
	log      *zap.Logger
	store    store.MessageStore
	verifier *Verifier
	origins  *originPolicy
	upgrader websocket.Upgrader

	sessions   map[*Session]struct{}
	register   chan *Session
	unregister chan *Session
	broadcast  chan roomBroadcast
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub wired to the given configuration, logger, and message
// store. The returned Hub is ready to run but idle until Run is called.
func NewHub(cfg Config, log *zap.Logger, st store.MessageStore) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:        cfg,
		log:        log,
		store:      st,
		verifier:   NewVerifier(cfg.JWTSecret),
		origins:    newOriginPolicy(cfg.AllowedOrigins, log),
		sessions:   make(map[*Session]struct{}),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		broadcast:  make(chan roomBroadcast),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SessionCount returns the number of currently registered sessions.
func (h *Hub) SessionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.sessions)
}

// Run starts the hub's main event loop, handling session registration,
// removal, and room broadcasts. It should be called in its own goroutine as
// it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownSessions()
			return

		case s := <-h.register:
			if s == nil {
				h.log.Warn("received nil session registration; skipping")
				continue
			}
			h.addSession(s)
			if s.conn != nil {
				h.wg.Add(2)
				go func() {
					defer h.wg.Done()
					s.writePump()
				}()
				go func() {
					defer h.wg.Done()
					s.readPump()
				}()
			}

		case s := <-h.unregister:
			h.removeSession(s)

		case b := <-h.broadcast:
			h.broadcastToRoom(b.Room, b.Payload, b.Exclude)
		}
	}
}

// addSession inserts a session into the registry and sends its welcome
// frame. A session appears in the registry at most once.
func (h *Hub) addSession(s *Session) {
	h.mutex.Lock()
	s.closed = false
	h.sessions[s] = struct{}{}
	total := len(h.sessions)
	h.mutex.Unlock()

	h.log.Info("session registered",
		zap.String("session", s.id),
		zap.String("user", s.userID),
		zap.String("addr", s.addr),
		zap.Int("total", total))

	h.sendTo(s, welcomeFrame(s.userID, time.Now()))
}

// removeSession takes a session out of the registry and closes its send
// channel. It is idempotent: duplicate close/error signals for the same
// session are safe no-ops.
func (h *Hub) removeSession(s *Session) {
	h.mutex.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.sessions, s)
	s.closed = true
	total := len(h.sessions)
	h.mutex.Unlock()

	// Close the channel after releasing the lock.
	close(s.send)

	h.log.Info("session unregistered",
		zap.String("session", s.id),
		zap.String("user", s.userID),
		zap.Int("total", total))
}

// joinRoom adds a room to the session's membership set. It reports whether
// membership actually changed; joining a room twice is a no-op.
func (h *Hub) joinRoom(s *Session, room string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := s.rooms[room]; ok {
		return false
	}
	s.rooms[room] = struct{}{}
	return true
}

// leaveRoom removes a room from the session's membership set if present.
func (h *Hub) leaveRoom(s *Session, room string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := s.rooms[room]; !ok {
		return false
	}
	delete(s.rooms, room)
	return true
}

// sendTo delivers a frame to a single session only.
func (h *Hub) sendTo(s *Session, frame outboundFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("error encoding frame", zap.Error(err))
		return
	}
	if !h.safeSend(s, payload) {
		h.log.Debug("dropped frame for unwritable session",
			zap.String("session", s.id))
	}
}

// safeSend attempts a non-blocking delivery to one session, returning false
// if the session is gone, closed, or its buffer is full.
func (h *Hub) safeSend(s *Session, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("recovered from panic in safeSend", zap.Any("panic", r))
		}
	}()

	// Hold the lock during the send so removal cannot race the channel close.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, ok := h.sessions[s]; !ok || s.closed {
		return false
	}

	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// memberSnapshot returns the sessions currently in the given room, minus the
// excluded session if any.
func (h *Hub) memberSnapshot(room string, exclude *Session) []*Session {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		if s == exclude {
			continue
		}
		if _, ok := s.rooms[room]; ok {
			members = append(members, s)
		}
	}
	return members
}

// broadcastToRoom delivers one frame to every member of a room, at most once
// per member. A failed delivery never aborts the others; sessions whose send
// buffer is full are reaped.
func (h *Hub) broadcastToRoom(room string, payload []byte, exclude *Session) {
	if payload == nil {
		return
	}

	members := h.memberSnapshot(room, exclude)
	h.log.Debug("broadcasting to room",
		zap.String("room", room),
		zap.Int("members", len(members)))

	var failed []*Session
	for _, s := range members {
		if !h.safeSend(s, payload) {
			failed = append(failed, s)
		}
	}

	for _, s := range failed {
		h.log.Warn("removing session after failed delivery",
			zap.String("session", s.id),
			zap.String("room", room))
		h.removeSession(s)
	}
}

// shutdownSessions removes and closes every live session during hub
// shutdown. Closing the send channel stops the write pump promptly; closing
// the connection unblocks the read pump.
func (h *Hub) shutdownSessions() {
	h.mutex.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mutex.Unlock()

	for _, s := range sessions {
		h.removeSession(s)
		if s.conn != nil {
			if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("error closing session connection",
					zap.String("session", s.id), zap.Error(err))
			}
		}
	}

	h.log.Info("closed all session connections", zap.Int("count", len(sessions)))
}

// Shutdown stops the event loop, closes all connections, and waits for the
// pump goroutines to finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
