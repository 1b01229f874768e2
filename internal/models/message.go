package models

import "time"

// ChatMessage is a message persisted in a room. Immutable once created; the
// serial id gives a total order within a room.
type ChatMessage struct {
	ID        int64     `db:"id" json:"id"`
	RoomID    int64     `db:"room_id" json:"room_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RoomEvent is broadcasted through websockets.
type RoomEvent struct {
	Type    string       `json:"type"`
	Message *ChatMessage `json:"message,omitempty"`
}
