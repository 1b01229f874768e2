package buffer

import (
	"context"
	"time"
)

// MessageRef is the serialized payload buffered in the ephemeral store. It is
// a pointer to the durable row, never an authoritative copy: redelivery always
// re-fetches the message by id.
type MessageRef struct {
	MessageID int64  `json:"message_id"`
	RoomID    int64  `json:"room_id"`
	SenderID  string `json:"sender_id"`
}

// DeliveryBuffer is the ephemeral delivery store: per-(room,user) retry
// queues, per-message retry counters, and per-user offline mailboxes. Entries
// expire by TTL; nothing survives past that contract and the caller must
// tolerate loss.
type DeliveryBuffer interface {
	// PushRetry appends a ref to the (room,user) retry queue and extends the
	// queue's TTL to the full retention window.
	PushRetry(ctx context.Context, roomID int64, userID string, ref MessageRef, ttl time.Duration) error

	// PopRetry removes and returns the oldest queued ref. ok is false when
	// the queue is empty.
	PopRetry(ctx context.Context, roomID int64, userID string) (ref MessageRef, ok bool, err error)

	// IncrRetryCount bumps the per-message attempt counter, setting its TTL
	// on first use, and returns the new count.
	IncrRetryCount(ctx context.Context, messageID int64, ttl time.Duration) (int64, error)

	// RetryCount returns the current attempt count, zero when absent.
	RetryCount(ctx context.Context, messageID int64) (int64, error)

	// PushMailbox appends a ref to the user's offline mailbox.
	PushMailbox(ctx context.Context, userID string, ref MessageRef, ttl time.Duration) error

	// ListMailbox returns every buffered ref in FIFO order without removal.
	ListMailbox(ctx context.Context, userID string) ([]MessageRef, error)

	// ClearMailbox wipes the mailbox in one operation.
	ClearMailbox(ctx context.Context, userID string) error
}
