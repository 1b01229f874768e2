package models

import "time"

// MessageReadStatus asserts that a reader has read a message. Rows are
// soft-deleted by the retention job, never hard-deleted; at most one
// non-deleted row exists per (message, reader) pair.
type MessageReadStatus struct {
	ID        int64     `db:"id" json:"id"`
	MessageID int64     `db:"message_id" json:"message_id"`
	ReaderID  string    `db:"reader_id" json:"reader_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
	IsDeleted bool      `db:"is_deleted" json:"is_deleted"`
}

// RoomUnread is one row of a user's unread summary.
type RoomUnread struct {
	RoomID int64 `db:"room_id" json:"room_id"`
	Unread int64 `db:"unread" json:"unread"`
}

// UnreadSummary is the global unread badge plus its per-room breakdown.
type UnreadSummary struct {
	TotalUnread int64        `json:"total_unread"`
	PerRoom     []RoomUnread `json:"per_room"`
}

// ReadReceipt describes how far a single message has spread.
type ReadReceipt struct {
	MessageID     int64    `json:"message_id"`
	ReaderCount   int64    `json:"reader_count"`
	UnreadUserIDs []string `json:"unread_user_ids"`
	ReadPercent   float64  `json:"read_percent"`
}
