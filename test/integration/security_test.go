// Package integration verifies the relay's admission controls: credential
// checks at connect time and origin enforcement on the upgrade.
package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abbaskhalil042/co-draw/internal/server"
	"github.com/abbaskhalil042/co-draw/internal/store"
	"github.com/abbaskhalil042/co-draw/test/testhelpers"
)

// TestMissingTokenRejected verifies that a connection without a token query
// parameter receives a structured error frame and is closed before any
// session is registered.
func TestMissingTokenRejected(t *testing.T) {
	ts, hub := testhelpers.StartRelay(t, store.NewMemoryStore())

	conn := testhelpers.Dial(t, ts, "")

	frame := testhelpers.ReadFrame(t, conn, 2*time.Second)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "Token missing", frame["error"])

	testhelpers.AssertClosed(t, conn, 2*time.Second)
	assert.Equal(t, 0, hub.SessionCount())
}

// TestExpiredTokenRejected verifies that a connection presenting an expired
// token receives the Invalid token error and no session appears in the
// registry afterward.
func TestExpiredTokenRejected(t *testing.T) {
	ts, hub := testhelpers.StartRelay(t, store.NewMemoryStore())

	expired := testhelpers.SignTokenWithExpiry(t, "user-1", time.Now().Add(-time.Minute))
	conn := testhelpers.Dial(t, ts, expired)

	frame := testhelpers.ReadFrame(t, conn, 2*time.Second)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "Invalid token", frame["error"])

	testhelpers.AssertClosed(t, conn, 2*time.Second)
	assert.Equal(t, 0, hub.SessionCount())
}

// TestForgedTokenRejected verifies that a token signed with the wrong secret
// is refused admission.
func TestForgedTokenRejected(t *testing.T) {
	ts, hub := testhelpers.StartRelay(t, store.NewMemoryStore())

	conn := testhelpers.Dial(t, ts, "a.forged.token")

	frame := testhelpers.ReadFrame(t, conn, 2*time.Second)
	assert.Equal(t, "Invalid token", frame["error"])

	testhelpers.AssertClosed(t, conn, 2*time.Second)
	assert.Equal(t, 0, hub.SessionCount())
}

// TestDisallowedOriginBlocked verifies that the upgrade is refused when the
// Origin header is not on the configured allow-list.
func TestDisallowedOriginBlocked(t *testing.T) {
	cfg := server.NewConfig()
	cfg.JWTSecret = testhelpers.Secret
	cfg.AllowedOrigins = []string{"http://allowed.example"}

	hub := server.NewHub(cfg, zap.NewNop(), store.NewMemoryStore())
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(2 * time.Second) })

	ts := testhelpers.StartHTTP(t, hub)

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	conn, resp, err := websocket.DefaultDialer.Dial(
		testhelpers.WSURL(ts, testhelpers.SignToken(t, "user-1")), header)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}

	require.Error(t, err)
	assert.Nil(t, conn)
	assert.Equal(t, 0, hub.SessionCount())
}

// TestOversizedFrameClosesConnection verifies that a frame exceeding the
// configured read limit terminates the connection and removes the session
// from the registry.
func TestOversizedFrameClosesConnection(t *testing.T) {
	cfg := server.NewConfig()
	cfg.JWTSecret = testhelpers.Secret
	cfg.AllowedOrigins = []string{"*"}
	cfg.MaxMessageSize = 64

	hub := server.NewHub(cfg, zap.NewNop(), store.NewMemoryStore())
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(2 * time.Second) })

	ts := testhelpers.StartHTTP(t, hub)

	conn := testhelpers.Dial(t, ts, testhelpers.SignToken(t, "user-1"))
	testhelpers.ReadFrame(t, conn, 2*time.Second)
	require.Equal(t, 1, hub.SessionCount())

	testhelpers.SendFrame(t, conn, map[string]any{
		"type":    "chat",
		"room":    "42",
		"message": strings.Repeat("x", 512),
	})

	testhelpers.AssertClosed(t, conn, 2*time.Second)
	require.Eventually(t, func() bool {
		return hub.SessionCount() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

// TestWebSocketEndpointRejectsPost verifies that the upgrade endpoint only
// accepts GET requests.
func TestWebSocketEndpointRejectsPost(t *testing.T) {
	ts, _ := testhelpers.StartRelay(t, store.NewMemoryStore())

	resp, err := http.Post(ts.URL+"/ws", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// TestHealthEndpoint verifies the plain-text health check.
func TestHealthEndpoint(t *testing.T) {
	ts, _ := testhelpers.StartRelay(t, store.NewMemoryStore())

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}
