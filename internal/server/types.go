// Package server defines shared broadcast types and utility helpers that are
// reused across session and hub logic.
package server

import "strings"

// roomBroadcast is one room-scoped delivery request processed by the hub.
// Exclude, when non-nil, names a session that must not receive the payload.
type roomBroadcast struct {
	Room    string
	Payload []byte
	Exclude *Session
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
