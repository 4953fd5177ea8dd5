package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker coordinates the one-session-per-user rule across instances
// using SET NX with a TTL. A crashed holder's lock expires on its own.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker creates a locker backed by the given Redis client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: "presence:session:",
	}
}

// Acquire implements ports.SessionLocker.
func (l *RedisLocker) Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+userID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	return ok, nil
}

// Release implements ports.SessionLocker.
func (l *RedisLocker) Release(ctx context.Context, userID string) error {
	if err := l.client.Del(ctx, l.prefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return nil
}
