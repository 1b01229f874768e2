package readstate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chat-delivery-service/internal/models"
	"chat-delivery-service/internal/observability"
	"chat-delivery-service/internal/repositories"
)

// Tracker is the authoritative bookkeeping of who has read what, and the fast
// unread-count queries at room and inbox granularity.
type Tracker struct {
	readRepo repositories.ReadStatusRepository
	log      *zap.Logger
}

// NewTracker constructs a Tracker.
func NewTracker(readRepo repositories.ReadStatusRepository, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{readRepo: readRepo, log: log}
}

// RecordRead idempotently acknowledges one message for one reader. Concurrent
// calls from multiple devices of the same user race safely to one row.
func (t *Tracker) RecordRead(ctx context.Context, msg models.ChatMessage, readerID string) error {
	_, err := t.readRepo.InsertIfAbsent(ctx, msg.ID, readerID, time.Now())
	return err
}

// BulkMarkAsRead marks every message in the room up to upTo, authored by
// others and not yet read, as read at upTo. Returns the number of rows written.
func (t *Tracker) BulkMarkAsRead(ctx context.Context, roomID int64, readerID string, upTo time.Time) (int64, error) {
	marked, err := t.readRepo.BulkMarkAsRead(ctx, roomID, readerID, upTo)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		t.log.Debug("bulk mark as read",
			zap.Int64("room_id", roomID), zap.String("reader_id", readerID), zap.Int64("marked", marked))
	}
	return marked, nil
}

// CountUnreadInRoom is the precise per-room unread count for a user.
func (t *Tracker) CountUnreadInRoom(ctx context.Context, roomID int64, userID string, lastReadTime time.Time) (int64, error) {
	return t.readRepo.CountUnreadInRoom(ctx, roomID, userID, lastReadTime)
}

// CountTotalUnread is the global unread badge across every room the user
// participates in.
func (t *Tracker) CountTotalUnread(ctx context.Context, userID string) (int64, error) {
	perRoom, err := t.readRepo.CountUnreadByRoom(ctx, userID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, row := range perRoom {
		total += row.Unread
	}
	return total, nil
}

// UnreadSummary returns the global badge together with its per-room breakdown.
func (t *Tracker) UnreadSummary(ctx context.Context, userID string) (models.UnreadSummary, error) {
	perRoom, err := t.readRepo.CountUnreadByRoom(ctx, userID)
	if err != nil {
		return models.UnreadSummary{}, err
	}
	summary := models.UnreadSummary{PerRoom: perRoom}
	for _, row := range perRoom {
		summary.TotalUnread += row.Unread
	}
	if summary.PerRoom == nil {
		summary.PerRoom = []models.RoomUnread{}
	}
	return summary, nil
}

// FindUnreadUsersByMessage lists room participants, excluding the sender, who
// have not read the message yet.
func (t *Tracker) FindUnreadUsersByMessage(ctx context.Context, messageID int64, roomID int64, senderID string) ([]string, error) {
	return t.readRepo.FindUnreadUsersByMessage(ctx, messageID, roomID, senderID)
}

// GetReaderCountForMessage counts distinct non-deleted readers of one message.
func (t *Tracker) GetReaderCountForMessage(ctx context.Context, messageID int64) (int64, error) {
	return t.readRepo.CountReaders(ctx, messageID)
}

// ReadReceipt assembles the "seen by N of M" view of one message. A room with
// no other joined participants is vacuously fully read.
func (t *Tracker) ReadReceipt(ctx context.Context, msg models.ChatMessage) (models.ReadReceipt, error) {
	readerCount, err := t.readRepo.CountReaders(ctx, msg.ID)
	if err != nil {
		return models.ReadReceipt{}, err
	}
	unreadUserIDs, err := t.readRepo.FindUnreadUsersByMessage(ctx, msg.ID, msg.RoomID, msg.SenderID)
	if err != nil {
		return models.ReadReceipt{}, err
	}
	audience, err := t.readRepo.CountJoinedParticipants(ctx, msg.RoomID, msg.SenderID)
	if err != nil {
		return models.ReadReceipt{}, err
	}

	receipt := models.ReadReceipt{
		MessageID:     msg.ID,
		ReaderCount:   readerCount,
		UnreadUserIDs: unreadUserIDs,
	}
	if receipt.UnreadUserIDs == nil {
		receipt.UnreadUserIDs = []string{}
	}

	// No audience beyond the sender: vacuously fully read.
	if audience <= 0 {
		receipt.ReadPercent = 100
		return receipt, nil
	}
	read := audience - int64(len(receipt.UnreadUserIDs))
	if read < 0 {
		read = 0
	}
	receipt.ReadPercent = float64(read) / float64(audience) * 100
	return receipt, nil
}

// CleanupOldReadStatuses soft-deletes read-status rows older than the cutoff.
// Rows inside the retention window are untouched, so current unread counts are
// unaffected; only historical receipt detail is forgotten.
func (t *Tracker) CleanupOldReadStatuses(ctx context.Context, cutoff time.Time) (int64, error) {
	pruned, err := t.readRepo.SoftDeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	observability.AddReadStatusPruned(pruned)
	return pruned, nil
}
