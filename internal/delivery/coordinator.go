package delivery

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"chat-delivery-service/internal/buffer"
	"chat-delivery-service/internal/models"
	"chat-delivery-service/internal/observability"
	"chat-delivery-service/internal/repositories"
)

// ConnectionRegistry answers whether a user has a live connection and pushes
// payloads to it. Implemented by the websocket hub.
type ConnectionRegistry interface {
	IsReachable(userID string) bool
	PushToUser(userID string, payload []byte) error
}

// Options bounds the buffered-redelivery machinery.
type Options struct {
	RetryQueueTTL time.Duration // retention of per-(room,user) retry queues
	RetryCountTTL time.Duration // lifetime of the per-message attempt counter
	MaxRetries    int           // automatic redelivery ceiling per message
}

// Coordinator delivers a persisted message to every room participant at least
// once without blocking the sender on slow or offline recipients. The durable
// store stays authoritative; everything buffered here is a hint.
type Coordinator struct {
	messageRepo repositories.MessageRepository
	buf         buffer.DeliveryBuffer
	registry    ConnectionRegistry
	opts        Options
	log         *zap.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(messageRepo repositories.MessageRepository, buf buffer.DeliveryBuffer, registry ConnectionRegistry, opts Options, log *zap.Logger) *Coordinator {
	if opts.RetryQueueTTL == 0 {
		opts.RetryQueueTTL = 7 * 24 * time.Hour
	}
	if opts.RetryCountTTL == 0 {
		opts.RetryCountTTL = 24 * time.Hour
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		messageRepo: messageRepo,
		buf:         buf,
		registry:    registry,
		opts:        opts,
		log:         log,
	}
}

// Dispatch fans a message out to every participant other than the sender.
// Reachable users get an immediate push; everyone else, and every failed push,
// lands in the retry queue and the offline mailbox. Dispatch never fails from
// the sender's point of view: buffer errors are logged and swallowed.
func (c *Coordinator) Dispatch(ctx context.Context, msg models.ChatMessage, participants []models.ChatRoomParticipant) {
	payload, err := encodeRoomEvent(msg)
	if err != nil {
		c.log.Error("dispatch: marshal event", zap.Error(err), zap.Int64("message_id", msg.ID))
		return
	}

	for _, p := range participants {
		if p.UserID == msg.SenderID {
			continue
		}

		if c.registry.IsReachable(p.UserID) {
			if err := c.registry.PushToUser(p.UserID, payload); err == nil {
				observability.IncDirectPush()
				continue
			}
			c.buffer(ctx, msg, p.UserID, "push_failed")
			continue
		}
		c.buffer(ctx, msg, p.UserID, "offline")
	}
}

func (c *Coordinator) buffer(ctx context.Context, msg models.ChatMessage, userID string, reason string) {
	if err := c.AddToRetryQueue(ctx, msg, msg.RoomID, userID); err != nil {
		c.log.Warn("dispatch: retry queue unavailable, direct path only",
			zap.Error(err), zap.Int64("message_id", msg.ID), zap.String("user_id", userID))
	}
	if err := c.StoreOfflineMessage(ctx, userID, msg); err != nil {
		c.log.Warn("dispatch: offline mailbox unavailable",
			zap.Error(err), zap.Int64("message_id", msg.ID), zap.String("user_id", userID))
	}
	observability.IncBuffered(reason)
	_ = observability.PublishEvent(ctx, "delivery.buffered", observability.EventEnvelope{
		EventType: "delivery_events",
		EventName: "message_buffered",
		Payload: map[string]interface{}{
			"message_id": msg.ID,
			"room_id":    msg.RoomID,
			"user_id":    userID,
			"reason":     reason,
		},
	}, nil)
}

// AddToRetryQueue appends the message to the (room,user) retry queue, resetting
// the queue's TTL to the full retention window.
func (c *Coordinator) AddToRetryQueue(ctx context.Context, msg models.ChatMessage, roomID int64, userID string) error {
	ref := buffer.MessageRef{MessageID: msg.ID, RoomID: roomID, SenderID: msg.SenderID}
	return c.buf.PushRetry(ctx, roomID, userID, ref, c.opts.RetryQueueTTL)
}

// ProcessRetryQueue pops at most one entry, oldest first, and re-resolves the
// durable message by id: the buffered payload is a hint, not the content.
// ok is false when the queue was empty or the durable row has vanished.
func (c *Coordinator) ProcessRetryQueue(ctx context.Context, roomID int64, userID string) (models.ChatMessage, bool, error) {
	ref, ok, err := c.buf.PopRetry(ctx, roomID, userID)
	if err != nil || !ok {
		return models.ChatMessage{}, false, err
	}

	msg, err := c.messageRepo.GetMessage(ctx, ref.MessageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.ChatMessage{}, false, nil
		}
		return models.ChatMessage{}, false, err
	}
	return msg, true, nil
}

// IncrementRetryCount bumps the systemic redelivery counter for a message.
// The counter is global per message, not per recipient.
func (c *Coordinator) IncrementRetryCount(ctx context.Context, messageID int64) error {
	_, err := c.buf.IncrRetryCount(ctx, messageID, c.opts.RetryCountTTL)
	return err
}

// GetRetryCount returns attempts so far; zero for a message never retried.
func (c *Coordinator) GetRetryCount(ctx context.Context, messageID int64) (int64, error) {
	return c.buf.RetryCount(ctx, messageID)
}

// IsMaxRetryExceeded reports whether automatic redelivery should stop. Past
// the ceiling the message is only served through the offline mailbox path; it
// is never purged from the durable store.
func (c *Coordinator) IsMaxRetryExceeded(ctx context.Context, messageID int64) (bool, error) {
	count, err := c.buf.RetryCount(ctx, messageID)
	if err != nil {
		return false, err
	}
	return count >= int64(c.opts.MaxRetries), nil
}

// StoreOfflineMessage appends the message to the user's offline mailbox.
func (c *Coordinator) StoreOfflineMessage(ctx context.Context, userID string, msg models.ChatMessage) error {
	ref := buffer.MessageRef{MessageID: msg.ID, RoomID: msg.RoomID, SenderID: msg.SenderID}
	return c.buf.PushMailbox(ctx, userID, ref, c.opts.RetryQueueTTL)
}

// GetOfflineMessages re-hydrates every mailbox entry against the durable store
// and returns them in original FIFO order. Entries whose durable row is gone
// are dropped silently.
func (c *Coordinator) GetOfflineMessages(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	refs, err := c.buf.ListMailbox(ctx, userID)
	if err != nil {
		return nil, err
	}

	msgs := make([]models.ChatMessage, 0, len(refs))
	for _, ref := range refs {
		msg, err := c.messageRepo.GetMessage(ctx, ref.MessageID)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				continue
			}
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ClearOfflineMessages wipes the mailbox unconditionally. The caller invokes
// this only after confirming delivery of the whole batch; there is no
// partial-ack protocol.
func (c *Coordinator) ClearOfflineMessages(ctx context.Context, userID string) error {
	return c.buf.ClearMailbox(ctx, userID)
}

// GetUnreadMessageCount is the coarse count of room messages authored by
// others, regardless of read state. The read-state tracker owns the precise
// computation.
func (c *Coordinator) GetUnreadMessageCount(ctx context.Context, roomID int64, userID string) (int64, error) {
	return c.messageRepo.CountMessagesFromOthers(ctx, roomID, userID)
}
