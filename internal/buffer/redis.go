package buffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBuffer implements DeliveryBuffer on top of Redis lists and counters.
type RedisBuffer struct {
	rdb *redis.Client
}

// NewRedisBuffer constructs a RedisBuffer and verifies connectivity.
func NewRedisBuffer(addr string) (*RedisBuffer, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBuffer{rdb: rdb}, nil
}

var _ DeliveryBuffer = (*RedisBuffer)(nil)

func retryQueueKey(roomID int64, userID string) string {
	return fmt.Sprintf("retry_queue:%d:%s", roomID, userID)
}

func retryCountKey(messageID int64) string {
	return fmt.Sprintf("retry_count:%d", messageID)
}

func mailboxKey(userID string) string {
	return fmt.Sprintf("offline_mailbox:%s", userID)
}

// PushRetry appends to the queue and resets its TTL in one pipeline.
func (b *RedisBuffer) PushRetry(ctx context.Context, roomID int64, userID string, ref MessageRef, ttl time.Duration) error {
	payload, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	key := retryQueueKey(roomID, userID)
	pipe := b.rdb.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// PopRetry pops exactly one entry, oldest first.
func (b *RedisBuffer) PopRetry(ctx context.Context, roomID int64, userID string) (MessageRef, bool, error) {
	val, err := b.rdb.LPop(ctx, retryQueueKey(roomID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return MessageRef{}, false, nil
	}
	if err != nil {
		return MessageRef{}, false, err
	}
	var ref MessageRef
	if err := json.Unmarshal([]byte(val), &ref); err != nil {
		return MessageRef{}, false, err
	}
	return ref, true, nil
}

// IncrRetryCount bumps the attempt counter, attaching the TTL on first use.
func (b *RedisBuffer) IncrRetryCount(ctx context.Context, messageID int64, ttl time.Duration) (int64, error) {
	key := retryCountKey(messageID)
	count, err := b.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = b.rdb.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// RetryCount returns the attempt count, zero when absent or expired.
func (b *RedisBuffer) RetryCount(ctx context.Context, messageID int64) (int64, error) {
	count, err := b.rdb.Get(ctx, retryCountKey(messageID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

// PushMailbox appends to the user's mailbox and resets its TTL.
func (b *RedisBuffer) PushMailbox(ctx context.Context, userID string, ref MessageRef, ttl time.Duration) error {
	payload, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	key := mailboxKey(userID)
	pipe := b.rdb.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// ListMailbox reads the whole mailbox in FIFO order.
func (b *RedisBuffer) ListMailbox(ctx context.Context, userID string) ([]MessageRef, error) {
	vals, err := b.rdb.LRange(ctx, mailboxKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	refs := make([]MessageRef, 0, len(vals))
	for _, val := range vals {
		var ref MessageRef
		if err := json.Unmarshal([]byte(val), &ref); err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// ClearMailbox deletes the whole key; cheaper than N individual removals.
func (b *RedisBuffer) ClearMailbox(ctx context.Context, userID string) error {
	return b.rdb.Del(ctx, mailboxKey(userID)).Err()
}

// Close releases the underlying client.
func (b *RedisBuffer) Close() error {
	return b.rdb.Close()
}
