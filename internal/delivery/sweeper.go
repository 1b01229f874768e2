package delivery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chat-delivery-service/internal/models"
	"chat-delivery-service/internal/observability"
)

// PresenceLister enumerates users with at least one live connection.
type PresenceLister interface {
	ConnectedUsers() []string
}

// RoomLister resolves the rooms a user participates in.
type RoomLister interface {
	ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error)
}

// ReadStatusPruner soft-deletes read-status rows older than the cutoff.
type ReadStatusPruner interface {
	CleanupOldReadStatuses(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically drains retry queues toward connected users and runs
// the read-status retention job. Each tick pops at most one entry per
// (room,user) so a single pass stays cheap.
type Sweeper struct {
	coordinator *Coordinator
	presence    PresenceLister
	rooms       RoomLister
	pruner      ReadStatusPruner

	interval        time.Duration
	retention       time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
	log             *zap.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(coordinator *Coordinator, presence PresenceLister, rooms RoomLister, pruner ReadStatusPruner, interval, retention time.Duration, log *zap.Logger) *Sweeper {
	if interval == 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		coordinator:     coordinator,
		presence:        presence,
		rooms:           rooms,
		pruner:          pruner,
		interval:        interval,
		retention:       retention,
		cleanupInterval: 24 * time.Hour,
		log:             log,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass: redelivery for every connected user, then the
// retention job when due.
func (s *Sweeper) Sweep(ctx context.Context) {
	for _, userID := range s.presence.ConnectedUsers() {
		s.sweepUser(ctx, userID)
	}

	if s.pruner != nil && s.retention > 0 && time.Since(s.lastCleanup) >= s.cleanupInterval {
		cutoff := time.Now().Add(-s.retention)
		pruned, err := s.pruner.CleanupOldReadStatuses(ctx, cutoff)
		if err != nil {
			s.log.Warn("sweep: read-status cleanup failed", zap.Error(err))
			return
		}
		s.lastCleanup = time.Now()
		if pruned > 0 {
			s.log.Info("sweep: pruned read statuses", zap.Int64("rows", pruned))
		}
	}
}

func (s *Sweeper) sweepUser(ctx context.Context, userID string) {
	rooms, err := s.rooms.ListRoomsForUser(ctx, userID)
	if err != nil {
		s.log.Warn("sweep: list rooms", zap.Error(err), zap.String("user_id", userID))
		return
	}

	for _, room := range rooms {
		msg, ok, err := s.coordinator.ProcessRetryQueue(ctx, room.ID, userID)
		if err != nil {
			s.log.Warn("sweep: retry queue", zap.Error(err), zap.Int64("room_id", room.ID), zap.String("user_id", userID))
			continue
		}
		if !ok {
			continue
		}
		s.redeliver(ctx, msg, userID)
	}
}

func (s *Sweeper) redeliver(ctx context.Context, msg models.ChatMessage, userID string) {
	exceeded, err := s.coordinator.IsMaxRetryExceeded(ctx, msg.ID)
	if err != nil {
		s.log.Warn("sweep: retry count lookup", zap.Error(err), zap.Int64("message_id", msg.ID))
		return
	}
	if exceeded {
		// Retry budget spent: the mailbox path still carries the message.
		observability.IncRetryExhausted()
		return
	}

	if err := s.coordinator.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.log.Warn("sweep: increment retry count", zap.Error(err), zap.Int64("message_id", msg.ID))
	}

	payload, err := encodeRoomEvent(msg)
	if err != nil {
		s.log.Error("sweep: marshal event", zap.Error(err), zap.Int64("message_id", msg.ID))
		return
	}
	if err := s.coordinator.registry.PushToUser(userID, payload); err != nil {
		// Connection dropped between the presence check and the write.
		if qerr := s.coordinator.AddToRetryQueue(ctx, msg, msg.RoomID, userID); qerr != nil {
			s.log.Warn("sweep: requeue failed", zap.Error(qerr), zap.Int64("message_id", msg.ID))
		}
		return
	}
	observability.IncRedelivery("retry_queue")
}
