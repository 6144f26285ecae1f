// Package testhelpers provides common utilities for testing the chat relay.
//
// It contains reusable helpers shared across integration tests: starting a
// relay backed by an in-memory store, minting signed tokens, dialing the
// WebSocket endpoint, and reading frames with deadlines.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abbaskhalil042/co-draw/internal/server"
	"github.com/abbaskhalil042/co-draw/internal/store"
)

// Secret is the shared signing secret used by all integration tests.
const Secret = "integration-secret"

// StartRelay boots a hub and HTTP server backed by the given store and
// registers cleanup with the test. It returns the test server and the hub.
func StartRelay(t *testing.T, st store.MessageStore) (*httptest.Server, *server.Hub) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.JWTSecret = Secret
	cfg.AllowedOrigins = []string{"*"}

	hub := server.NewHub(cfg, zap.NewNop(), st)
	go hub.Run()

	ts := httptest.NewServer(server.SetupRoutes(hub))
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
	})
	return ts, hub
}

// StartHTTP starts only the HTTP layer for a hub the caller constructed,
// registering cleanup with the test.
func StartHTTP(t *testing.T, hub *server.Hub) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(server.SetupRoutes(hub))
	t.Cleanup(ts.Close)
	return ts
}

// SignToken mints an HS256 token with the given user id, valid for an hour.
func SignToken(t *testing.T, userID string) string {
	t.Helper()
	return SignTokenWithExpiry(t, userID, time.Now().Add(time.Hour))
}

// SignTokenWithExpiry mints an HS256 token with an explicit expiry.
func SignTokenWithExpiry(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID,
		"exp":    expiresAt.Unix(),
	}).SignedString([]byte(Secret))
	require.NoError(t, err)
	return token
}

// WSURL builds the ws:// URL for the relay's WebSocket endpoint, optionally
// carrying a token query parameter.
func WSURL(ts *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

// Dial opens a WebSocket connection with an Origin header the default test
// configuration accepts, failing the test on error.
func Dial(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Set("Origin", ts.URL)

	conn, resp, err := websocket.DefaultDialer.Dial(WSURL(ts, token), header)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadFrame reads one JSON frame from the connection within the timeout.
func ReadFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	frame := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

// SendFrame writes one JSON frame to the connection.
func SendFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()

	data, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// AssertNoFrame asserts that no frame arrives on the connection within the
// timeout.
func AssertNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected frame: %s", data)
	}
}

// AssertClosed asserts that the next read on the connection fails because the
// server closed it.
func AssertClosed(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}
