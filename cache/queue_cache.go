package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// queueTTL bounds how long an idle queue snapshot survives in Redis.
const queueTTL = 24 * time.Hour

// QueueSnapshot is the persisted state of one user's playback queue.
type QueueSnapshot struct {
	Order    []int64 `json:"order"`
	ActiveID *int64  `json:"activeId,omitempty"`
}

// QueueKey builds the Redis key for a user's playback queue.
func QueueKey(userID string) string {
	return fmt.Sprintf("queue:%s", userID)
}

// SaveQueue stores a user's queue snapshot.
func SaveQueue(ctx context.Context, userID string, snap QueueSnapshot) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal queue snapshot: %w", err)
	}

	if err := RedisClient.Set(ctx, QueueKey(userID), data, queueTTL).Err(); err != nil {
		return fmt.Errorf("failed to save queue snapshot: %w", err)
	}
	return nil
}

// LoadQueue fetches a user's queue snapshot. Returns (nil, nil) when no
// snapshot exists.
func LoadQueue(ctx context.Context, userID string) (*QueueSnapshot, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := RedisClient.Get(ctx, QueueKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load queue snapshot: %w", err)
	}

	var snap QueueSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue snapshot: %w", err)
	}
	return &snap, nil
}

// DropQueue removes a user's queue snapshot.
func DropQueue(ctx context.Context, userID string) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	if err := RedisClient.Del(ctx, QueueKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to drop queue snapshot: %w", err)
	}
	return nil
}
