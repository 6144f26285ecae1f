// Package store defines the room and message persistence boundary consumed
// by the chat relay, along with its Postgres and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrRoomNotFound is returned when a room id does not exist in the store.
var ErrRoomNotFound = errors.New("room not found")

// Room is a named channel that chat messages are persisted against.
type Room struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// ChatMessage is a persisted chat message. Messages are immutable once
// created; the stored text is the canonical copy echoed back to clients.
type ChatMessage struct {
	ID        int64
	RoomID    int64
	UserID    string
	Message   string
	CreatedAt time.Time
}

// MessageStore confirms room existence and durably persists chat messages.
type MessageStore interface {
	// FindRoom returns the room with the given id, or ErrRoomNotFound.
	FindRoom(ctx context.Context, id int64) (*Room, error)

	// CreateChatMessage persists a message and returns the stored record
	// with its assigned id and creation timestamp.
	CreateChatMessage(ctx context.Context, roomID int64, userID, text string) (*ChatMessage, error)
}
