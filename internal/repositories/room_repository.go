package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-delivery-service/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository supplies rooms and their membership. It plays the role of
// the room membership provider for the delivery coordinator.
type RoomRepository interface {
	CreateRoom(ctx context.Context, name string, participantIDs []string) (models.ChatRoom, error)
	GetRoom(ctx context.Context, roomID int64) (models.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error)
	ListParticipants(ctx context.Context, roomID int64) ([]models.ChatRoomParticipant, error)
	IsParticipant(ctx context.Context, roomID int64, userID string) (bool, error)
	AddParticipant(ctx context.Context, roomID int64, userID string) error
	MarkJoined(ctx context.Context, roomID int64, userID string, at time.Time) error
}

// RoomRepo is a sqlx-backed repository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom inserts a room and its initial participant set in one transaction.
// Participants start with a null joined_at until they first open the room.
func (r *RoomRepo) CreateRoom(ctx context.Context, name string, participantIDs []string) (models.ChatRoom, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatRoom{}, err
	}
	defer tx.Rollback()

	var room models.ChatRoom
	err = tx.QueryRowxContext(ctx, `INSERT INTO chat_rooms (name) VALUES ($1) RETURNING id, name, created_at`, name).
		Scan(&room.ID, &room.Name, &room.CreatedAt)
	if err != nil {
		return models.ChatRoom{}, err
	}

	for _, userID := range participantIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_room_participants (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			room.ID, userID); err != nil {
			return models.ChatRoom{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

// GetRoom retrieves a single room.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int64) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, `SELECT id, name, created_at FROM chat_rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return room, err
}

// ListRoomsForUser returns every room the user participates in.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := r.db.SelectContext(ctx, &rooms, `SELECT r.id, r.name, r.created_at
        FROM chat_rooms r
        JOIN chat_room_participants p ON p.room_id = r.id
        WHERE p.user_id=$1
        ORDER BY r.created_at ASC`, userID)
	return rooms, err
}

// ListParticipants returns the current membership of a room with join times.
func (r *RoomRepo) ListParticipants(ctx context.Context, roomID int64) ([]models.ChatRoomParticipant, error) {
	var parts []models.ChatRoomParticipant
	err := r.db.SelectContext(ctx, &parts,
		`SELECT room_id, user_id, joined_at FROM chat_room_participants WHERE room_id=$1`, roomID)
	return parts, err
}

// IsParticipant reports whether the user belongs to the room.
func (r *RoomRepo) IsParticipant(ctx context.Context, roomID int64, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_room_participants WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// AddParticipant adds a user to a room with a null joined_at.
func (r *RoomRepo) AddParticipant(ctx context.Context, roomID int64, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_room_participants (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roomID, userID)
	return err
}

// MarkJoined records first presence in the room. Later calls are no-ops so the
// original join time is preserved.
func (r *RoomRepo) MarkJoined(ctx context.Context, roomID int64, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_room_participants SET joined_at=$3 WHERE room_id=$1 AND user_id=$2 AND joined_at IS NULL`,
		roomID, userID, at)
	return err
}
