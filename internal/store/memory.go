package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory MessageStore used for tests and local runs
// without a database. Rooms must be seeded with AddRoom before messages can
// be persisted against them.
type MemoryStore struct {
	mu       sync.Mutex
	rooms    map[int64]*Room
	messages map[int64][]*ChatMessage
	nextID   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[int64]*Room),
		messages: make(map[int64][]*ChatMessage),
	}
}

// AddRoom seeds a room into the store and returns it.
func (s *MemoryStore) AddRoom(id int64, name string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := &Room{ID: id, Name: name, CreatedAt: time.Now().UTC()}
	s.rooms[id] = room
	return room
}

// FindRoom looks up a seeded room by id.
func (s *MemoryStore) FindRoom(_ context.Context, id int64) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// CreateChatMessage appends a message to the room's history with a
// monotonically assigned id.
func (s *MemoryStore) CreateChatMessage(_ context.Context, roomID int64, userID, text string) (*ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return nil, ErrRoomNotFound
	}

	s.nextID++
	msg := &ChatMessage{
		ID:        s.nextID,
		RoomID:    roomID,
		UserID:    userID,
		Message:   text,
		CreatedAt: time.Now().UTC(),
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	return msg, nil
}

// Messages returns a copy of the messages persisted for a room, in creation
// order.
func (s *MemoryStore) Messages(roomID int64) []*ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*ChatMessage(nil), s.messages[roomID]...)
}
