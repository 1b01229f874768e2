package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-delivery-service/internal/models"
)

// ReadStatusRepository is the system of record for who has read what. All
// idempotent inserts rely on the partial unique index over
// (message_id, reader_id) WHERE NOT is_deleted; a plain check-then-insert
// would race.
type ReadStatusRepository interface {
	InsertIfAbsent(ctx context.Context, messageID int64, readerID string, readAt time.Time) (bool, error)
	BulkMarkAsRead(ctx context.Context, roomID int64, readerID string, upTo time.Time) (int64, error)
	CountUnreadInRoom(ctx context.Context, roomID int64, userID string, lastReadTime time.Time) (int64, error)
	CountUnreadByRoom(ctx context.Context, userID string) ([]models.RoomUnread, error)
	FindUnreadUsersByMessage(ctx context.Context, messageID int64, roomID int64, senderID string) ([]string, error)
	CountReaders(ctx context.Context, messageID int64) (int64, error)
	CountJoinedParticipants(ctx context.Context, roomID int64, excludeUserID string) (int64, error)
	SoftDeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReadStatusRepo is a sqlx-backed repository.
type ReadStatusRepo struct {
	db *sqlx.DB
}

// NewReadStatusRepo constructs ReadStatusRepo.
func NewReadStatusRepo(db *sqlx.DB) *ReadStatusRepo {
	return &ReadStatusRepo{db: db}
}

// InsertIfAbsent records a read acknowledgement unless a non-deleted row
// already exists for the pair. Returns whether a row was written.
func (r *ReadStatusRepo) InsertIfAbsent(ctx context.Context, messageID int64, readerID string, readAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO message_read_status (message_id, reader_id, read_at)
         VALUES ($1, $2, $3)
         ON CONFLICT (message_id, reader_id) WHERE NOT is_deleted DO NOTHING`,
		messageID, readerID, readAt)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// BulkMarkAsRead inserts a read-status row for every message in the room
// created at or before upTo, authored by someone else, and not yet read by
// readerID. One set-oriented statement, not a per-message loop.
func (r *ReadStatusRepo) BulkMarkAsRead(ctx context.Context, roomID int64, readerID string, upTo time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO message_read_status (message_id, reader_id, read_at)
         SELECT m.id, $2, $3
         FROM chat_messages m
         WHERE m.room_id = $1
           AND m.sender_id <> $2
           AND m.created_at <= $3
           AND NOT EXISTS (
               SELECT 1 FROM message_read_status rs
               WHERE rs.message_id = m.id AND rs.reader_id = $2 AND NOT rs.is_deleted
           )
         ON CONFLICT (message_id, reader_id) WHERE NOT is_deleted DO NOTHING`,
		roomID, readerID, upTo)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnreadInRoom counts messages authored by others after lastReadTime with
// no non-deleted read-status row for userID.
func (r *ReadStatusRepo) CountUnreadInRoom(ctx context.Context, roomID int64, userID string, lastReadTime time.Time) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*)
         FROM chat_messages m
         WHERE m.room_id = $1
           AND m.sender_id <> $2
           AND m.created_at > $3
           AND NOT EXISTS (
               SELECT 1 FROM message_read_status rs
               WHERE rs.message_id = m.id AND rs.reader_id = $2 AND NOT rs.is_deleted
           )`,
		roomID, userID, lastReadTime)
	return count, err
}

// CountUnreadByRoom applies the unread predicate across every room the user
// participates in, grouped per room. Rooms with nothing unread are omitted.
func (r *ReadStatusRepo) CountUnreadByRoom(ctx context.Context, userID string) ([]models.RoomUnread, error) {
	var rows []models.RoomUnread
	err := r.db.SelectContext(ctx, &rows,
		`SELECT m.room_id AS room_id, COUNT(*) AS unread
         FROM chat_messages m
         JOIN chat_room_participants p ON p.room_id = m.room_id AND p.user_id = $1
         WHERE m.sender_id <> $1
           AND NOT EXISTS (
               SELECT 1 FROM message_read_status rs
               WHERE rs.message_id = m.id AND rs.reader_id = $1 AND NOT rs.is_deleted
           )
         GROUP BY m.room_id
         ORDER BY m.room_id ASC`,
		userID)
	return rows, err
}

// FindUnreadUsersByMessage returns room participants, excluding the sender,
// lacking a non-deleted read-status row for the message. Participants who
// never joined the room are not counted.
func (r *ReadStatusRepo) FindUnreadUsersByMessage(ctx context.Context, messageID int64, roomID int64, senderID string) ([]string, error) {
	var userIDs []string
	err := r.db.SelectContext(ctx, &userIDs,
		`SELECT p.user_id
         FROM chat_room_participants p
         WHERE p.room_id = $2
           AND p.user_id <> $3
           AND p.joined_at IS NOT NULL
           AND NOT EXISTS (
               SELECT 1 FROM message_read_status rs
               WHERE rs.message_id = $1 AND rs.reader_id = p.user_id AND NOT rs.is_deleted
           )
         ORDER BY p.user_id ASC`,
		messageID, roomID, senderID)
	return userIDs, err
}

// CountReaders counts distinct non-deleted readers of one message.
func (r *ReadStatusRepo) CountReaders(ctx context.Context, messageID int64) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(DISTINCT reader_id) FROM message_read_status WHERE message_id=$1 AND NOT is_deleted`,
		messageID)
	return count, err
}

// CountJoinedParticipants counts participants with an established presence in
// the room, excluding excludeUserID. Null joined_at rows are excluded from
// read-percentage math.
func (r *ReadStatusRepo) CountJoinedParticipants(ctx context.Context, roomID int64, excludeUserID string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM chat_room_participants WHERE room_id=$1 AND user_id<>$2 AND joined_at IS NOT NULL`,
		roomID, excludeUserID)
	return count, err
}

// SoftDeleteBefore flips is_deleted on rows read before the cutoff. Already
// deleted rows are untouched. Forgetting old receipts can make those messages
// count as unread again; that retention trade-off is intentional.
func (r *ReadStatusRepo) SoftDeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE message_read_status SET is_deleted = TRUE WHERE read_at < $1 AND NOT is_deleted`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
