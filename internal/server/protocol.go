// Package server decodes inbound JSON frames into typed events and drives
// the per-session protocol state machine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/abbaskhalil042/co-draw/internal/store"
)

// Inbound frame type discriminators.
const (
	frameJoinRoom   = "join_room"
	frameLeaveRoom  = "leave_room"
	frameRejoinRoom = "rejoin_room"
	frameChat       = "chat"
	framePing       = "ping"
)

// Outbound frame type discriminators.
const (
	frameSystem = "system"
	frameError  = "error"
	framePong   = "pong"
)

// inboundFrame is the decoded shape of a client frame. Type is the required
// discriminator; the remaining fields are required per variant.
type inboundFrame struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Message string `json:"message"`
}

// outboundFrame is the wire shape of every server-originated frame.
type outboundFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Room      string `json:"room,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func systemFrame(message, room string) outboundFrame {
	return outboundFrame{Type: frameSystem, Message: message, Room: room}
}

func errorFrame(message string) outboundFrame {
	return outboundFrame{Type: frameError, Error: message}
}

func welcomeFrame(userID string, ts time.Time) outboundFrame {
	return outboundFrame{
		Type:      frameSystem,
		Message:   "connected",
		UserID:    userID,
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
}

func chatFrame(room, message, userID string, ts time.Time) outboundFrame {
	return outboundFrame{
		Type:      frameChat,
		Room:      room,
		Message:   message,
		UserID:    userID,
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
}

// dispatch decodes one raw frame from a session and applies it to the state
// machine. It runs on the session's read goroutine; the store call for chat
// frames is the only blocking operation.
func (h *Hub) dispatch(s *Session, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendTo(s, errorFrame("invalid message format"))
		return
	}

	switch frame.Type {
	case frameJoinRoom:
		h.handleJoin(s, frame.Room, "joined room")
	case frameRejoinRoom:
		h.handleJoin(s, frame.Room, "rejoined room")
	case frameLeaveRoom:
		h.handleLeave(s, frame.Room)
	case frameChat:
		h.handleChat(s, frame)
	case framePing:
		h.sendTo(s, outboundFrame{Type: framePong})
	default:
		h.sendTo(s, errorFrame("unknown message type"))
	}
}

func (h *Hub) handleJoin(s *Session, room, ack string) {
	if room == "" {
		h.sendTo(s, errorFrame("room is required"))
		return
	}

	if h.joinRoom(s, room) {
		h.log.Info("session joined room",
			zap.String("session", s.id),
			zap.String("user", s.userID),
			zap.String("room", room))
	}
	h.sendTo(s, systemFrame(ack, room))
}

func (h *Hub) handleLeave(s *Session, room string) {
	if room == "" {
		h.sendTo(s, errorFrame("room is required"))
		return
	}

	if h.leaveRoom(s, room) {
		h.log.Info("session left room",
			zap.String("session", s.id),
			zap.String("user", s.userID),
			zap.String("room", room))
	}
	h.sendTo(s, systemFrame("left room", room))
}

func (h *Hub) handleChat(s *Session, frame inboundFrame) {
	if frame.Room == "" || frame.Message == "" {
		h.sendTo(s, errorFrame("room and message are required"))
		return
	}

	roomID, err := strconv.ParseInt(frame.Room, 10, 64)
	if err != nil {
		h.sendTo(s, errorFrame("Invalid room ID"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.StoreTimeout)
	defer cancel()

	if _, err := h.store.FindRoom(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			h.sendTo(s, errorFrame("Room not found"))
			return
		}
		h.log.Error("room lookup failed",
			zap.String("session", s.id),
			zap.Int64("room", roomID),
			zap.Error(err))
		h.sendTo(s, errorFrame("Failed to send message"))
		return
	}

	msg, err := h.store.CreateChatMessage(ctx, roomID, s.userID, frame.Message)
	if err != nil {
		h.log.Error("message persistence failed",
			zap.String("session", s.id),
			zap.Int64("room", roomID),
			zap.Error(err))
		h.sendTo(s, errorFrame("Failed to send message"))
		return
	}

	payload, err := json.Marshal(chatFrame(frame.Room, msg.Message, s.userID, msg.CreatedAt))
	if err != nil {
		h.log.Error("error encoding chat frame", zap.Error(err))
		h.sendTo(s, errorFrame("Failed to send message"))
		return
	}

	// The stored copy is canonical; broadcast it back to the whole room,
	// sender included, so every client renders exactly what was persisted.
	select {
	case h.broadcast <- roomBroadcast{Room: frame.Room, Payload: payload}:
	case <-h.ctx.Done():
	}
}
