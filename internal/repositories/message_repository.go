package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-delivery-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the durable message store. Messages are immutable once
// created; the repository is the system of record for message content.
type MessageRepository interface {
	CreateMessage(ctx context.Context, roomID int64, senderID string, content string) (models.ChatMessage, error)
	GetMessage(ctx context.Context, messageID int64) (models.ChatMessage, error)
	ListRoomMessages(ctx context.Context, roomID int64) ([]models.ChatMessage, error)
	CountMessagesFromOthers(ctx context.Context, roomID int64, userID string) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage persists a message in a room.
func (r *MessageRepo) CreateMessage(ctx context.Context, roomID int64, senderID string, content string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_messages (room_id, sender_id, content) VALUES ($1, $2, $3)
         RETURNING id, room_id, sender_id, content, created_at`,
		roomID, senderID, content).
		Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.CreatedAt)
	return msg, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, room_id, sender_id, content, created_at FROM chat_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	return msg, err
}

// ListRoomMessages returns room messages in creation order.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID int64) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, room_id, sender_id, content, created_at FROM chat_messages WHERE room_id=$1 ORDER BY id ASC`,
		roomID)
	return msgs, err
}

// CountMessagesFromOthers is the coarse per-room counter of messages authored
// by someone other than userID, regardless of read state.
func (r *MessageRepo) CountMessagesFromOthers(ctx context.Context, roomID int64, userID string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM chat_messages WHERE room_id=$1 AND sender_id<>$2`, roomID, userID)
	return count, err
}
