package buffer

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks the ephemeral store as unreachable. Callers treat it
// as a degraded mode, not a failure: direct pushes still proceed.
var ErrUnavailable = errors.New("delivery buffer unavailable")

// NoopBuffer stands in when Redis cannot be reached at startup. Writes report
// ErrUnavailable so the coordinator can log and move on; reads come back
// empty.
type NoopBuffer struct{}

var _ DeliveryBuffer = NoopBuffer{}

func (NoopBuffer) PushRetry(ctx context.Context, roomID int64, userID string, ref MessageRef, ttl time.Duration) error {
	return ErrUnavailable
}

func (NoopBuffer) PopRetry(ctx context.Context, roomID int64, userID string) (MessageRef, bool, error) {
	return MessageRef{}, false, nil
}

func (NoopBuffer) IncrRetryCount(ctx context.Context, messageID int64, ttl time.Duration) (int64, error) {
	return 0, ErrUnavailable
}

func (NoopBuffer) RetryCount(ctx context.Context, messageID int64) (int64, error) {
	return 0, nil
}

func (NoopBuffer) PushMailbox(ctx context.Context, userID string, ref MessageRef, ttl time.Duration) error {
	return ErrUnavailable
}

func (NoopBuffer) ListMailbox(ctx context.Context, userID string) ([]MessageRef, error) {
	return nil, nil
}

func (NoopBuffer) ClearMailbox(ctx context.Context, userID string) error {
	return nil
}
