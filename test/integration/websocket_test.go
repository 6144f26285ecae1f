// Package integration contains end-to-end tests that exercise the chat relay
// over real WebSocket connections.
//
// These tests boot the full HTTP server with an in-memory message store and
// verify the frame protocol, room membership, and broadcast behavior exactly
// as a client would observe them.
package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbaskhalil042/co-draw/internal/store"
	"github.com/abbaskhalil042/co-draw/test/testhelpers"
)

const frameWait = 2 * time.Second

// TestWelcomeFrameOnConnect verifies that an authenticated connection is
// greeted with a system frame carrying the authenticated user id and a
// timestamp.
func TestWelcomeFrameOnConnect(t *testing.T) {
	ts, hub := testhelpers.StartRelay(t, store.NewMemoryStore())

	conn := testhelpers.Dial(t, ts, testhelpers.SignToken(t, "user-1"))

	welcome := testhelpers.ReadFrame(t, conn, frameWait)
	assert.Equal(t, "system", welcome["type"])
	assert.Equal(t, "user-1", welcome["userId"])
	assert.NotEmpty(t, welcome["timestamp"])
	assert.Equal(t, 1, hub.SessionCount())
}

// TestRoomBroadcastScenario runs the canonical relay scenario: sessions A and
// B join room "42", C stays out; A sends a chat message; A and B both receive
// the stored copy, C receives nothing, and the message is persisted once.
func TestRoomBroadcastScenario(t *testing.T) {
	st := store.NewMemoryStore()
	st.AddRoom(42, "general")
	ts, _ := testhelpers.StartRelay(t, st)

	alice := testhelpers.Dial(t, ts, testhelpers.SignToken(t, "alice"))
	bob := testhelpers.Dial(t, ts, testhelpers.SignToken(t, "bob"))
	carol := testhelpers.Dial(t, ts, testhelpers.SignToken(t, "carol"))

	testhelpers.ReadFrame(t, alice, frameWait) // welcome
	testhelpers.ReadFrame(t, bob, frameWait)
	testhelpers.ReadFrame(t, carol, frameWait)

	testhelpers.SendFrame(t, alice, map[string]any{"type": "join_room", "room": "42"})
	ack := testhelpers.ReadFrame(t, alice, frameWait)
	assert.Equal(t, "system", ack["type"])
	assert.Equal(t, "42", ack["room"])

	testhelpers.SendFrame(t, bob, map[string]any{"type": "join_room", "room": "42"})
	testhelpers.ReadFrame(t, bob, frameWait)

	testhelpers.SendFrame(t, alice, map[string]any{"type": "chat", "room": "42", "message": "hi"})

	aliceChat := testhelpers.ReadFrame(t, alice, frameWait)
	bobChat := testhelpers.ReadFrame(t, bob, frameWait)
	for _, frame := range []map[string]any{aliceChat, bobChat} {
		assert.Equal(t, "chat", frame["type"])
		assert.Equal(t, "42", frame["room"])
		assert.Equal(t, "hi", frame["message"])
		assert.Equal(t, "alice", frame["userId"])
		assert.NotEmpty(t, frame["timestamp"])
	}

	msgs := st.Messages(42)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Message)
	assert.Equal(t, "alice", msgs[0].UserID)

	testhelpers.AssertNoFrame(t, carol, 200*time.Millisecond)
}

// TestPingPong verifies that a ping frame is answered with exactly one pong
// and that no other session hears about it.
func TestPingPong(t *testing.T) {
	ts, _ := testhelpers.StartRelay(t, store.NewMemoryStore())

	conn := testhelpers.Dial(t, ts, testhelpers.SignToken(t, "user-1"))
	other := testhelpers.Dial(t, ts, testhelpers.SignToken(t, "user-2"))
	testhelpers.ReadFrame(t, conn, frameWait)
	testhelpers.ReadFrame(t, other, frameWait)

	testhelpers.SendFrame(t, conn, map[string]any{"type": "ping"})

	pong := testhelpers.ReadFrame(t, conn, frameWait)
	assert.Equal(t, "pong", pong["type"])
	testhelpers.AssertNoFrame(t, other, 200*time.Millisecond)
}

// TestChatErrorPayloads verifies that clients can distinguish a non-numeric
// room id from a stale room reference.
func TestChatErrorPayloads(t *testing.T) {
	ts, _ := testhelpers.StartRelay(t, store.NewMemoryStore())

	conn := testhelpers.Dial(t, ts, testhelpers.SignToken(t, "user-1"))
	testhelpers.ReadFrame(t, conn, frameWait)

	testhelpers.SendFrame(t, conn, map[string]any{"type": "chat", "room": "lobby", "message": "hi"})
	invalid := testhelpers.ReadFrame(t, conn, frameWait)
	assert.Equal(t, "Invalid room ID", invalid["error"])

	testhelpers.SendFrame(t, conn, map[string]any{"type": "chat", "room": "404", "message": "hi"})
	missing := testhelpers.ReadFrame(t, conn, frameWait)
	assert.Equal(t, "Room not found", missing["error"])
}

// TestDisconnectStopsDelivery verifies that a closed session receives no
// further broadcasts and that the registry shrinks accordingly.
func TestDisconnectStopsDelivery(t *testing.T) {
	st := store.NewMemoryStore()
	st.AddRoom(42, "general")
	ts, hub := testhelpers.StartRelay(t, st)

	alice := testhelpers.Dial(t, ts, testhelpers.SignToken(t, "alice"))
	bob := testhelpers.Dial(t, ts, testhelpers.SignToken(t, "bob"))
	testhelpers.ReadFrame(t, alice, frameWait)
	testhelpers.ReadFrame(t, bob, frameWait)

	testhelpers.SendFrame(t, alice, map[string]any{"type": "join_room", "room": "42"})
	testhelpers.ReadFrame(t, alice, frameWait)
	testhelpers.SendFrame(t, bob, map[string]any{"type": "join_room", "room": "42"})
	testhelpers.ReadFrame(t, bob, frameWait)

	require.NoError(t, bob.Close())

	require.Eventually(t, func() bool {
		return hub.SessionCount() == 1
	}, 2*time.Second, 20*time.Millisecond)

	testhelpers.SendFrame(t, alice, map[string]any{"type": "chat", "room": "42", "message": "still here"})
	frame := testhelpers.ReadFrame(t, alice, frameWait)
	assert.Equal(t, "still here", frame["message"])
}
