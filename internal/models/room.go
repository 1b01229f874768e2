package models

import "time"

// ChatRoom is a named set of participants who exchange messages.
type ChatRoom struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatRoomParticipant ties a user to a room. JoinedAt stays null until the
// user first establishes presence in the room; participants with a null
// JoinedAt do not count toward room size for read-percentage purposes.
type ChatRoomParticipant struct {
	RoomID   int64      `db:"room_id" json:"room_id"`
	UserID   string     `db:"user_id" json:"user_id"`
	JoinedAt *time.Time `db:"joined_at" json:"joined_at,omitempty"`
}
