package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists rooms and chat messages in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool. The caller owns the
// pool and is responsible for closing it.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect creates a connection pool for the given database URL.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

// FindRoom looks up a room by id.
func (s *PostgresStore) FindRoom(ctx context.Context, id int64) (*Room, error) {
	room := &Room{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM rooms WHERE id = $1`, id,
	).Scan(&room.ID, &room.Name, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("find room %d: %w", id, err)
	}
	return room, nil
}

// CreateChatMessage inserts a chat message and returns the stored record.
func (s *PostgresStore) CreateChatMessage(ctx context.Context, roomID int64, userID, text string) (*ChatMessage, error) {
	msg := &ChatMessage{
		RoomID:  roomID,
		UserID:  userID,
		Message: text,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (room_id, user_id, message)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		roomID, userID, text,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create chat message in room %d: %w", roomID, err)
	}
	return msg, nil
}
