// Package server exposes the HTTP handlers for the chat relay: the WebSocket
// upgrade with authentication at connect, and the health check.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandleWebSocket upgrades the HTTP connection, authenticates the credential
// carried in the token query parameter, and admits the session into the
// registry. Connections that fail authentication receive a structured error
// frame and are closed; no session is created for them.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed",
			zap.String("addr", r.RemoteAddr), zap.Error(err))
		return
	}

	userID, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		h.rejectConnection(conn, r.RemoteAddr, err)
		return
	}

	session := newSession(conn, h, userID, r.RemoteAddr)

	// The hub loop inserts the session, sends the welcome frame, and starts
	// the pump goroutines. A hub mid-shutdown admits nobody.
	select {
	case h.register <- session:
	case <-h.ctx.Done():
		_ = conn.Close()
	}
}

// rejectConnection notifies an unauthenticated peer and closes the transport.
func (h *Hub) rejectConnection(conn *websocket.Conn, addr string, authErr error) {
	reason := "Invalid token"
	if errors.Is(authErr, ErrMissingToken) {
		reason = "Token missing"
	}

	h.log.Warn("rejected connection",
		zap.String("addr", addr), zap.Error(authErr))

	payload, err := json.Marshal(errorFrame(reason))
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		h.log.Warn("error closing rejected connection", zap.Error(err))
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.origins.allowed(r) {
		return true
	}

	h.log.Warn("blocked websocket connection from disallowed origin",
		zap.String("origin", r.Header.Get("Origin")))
	return false
}

// HealthHandler provides a simple health check endpoint that returns server
// status as plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat relay server is running!")
}
