package accesskey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "pgqueue:access_key:"

// RedisRegistry lets Redis expire keys on its own.
type RedisRegistry struct {
	client redis.Cmdable
}

func NewRedisRegistry(client redis.Cmdable) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Register(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to register access key: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Consume(ctx context.Context, key string) (bool, error) {
	err := r.client.GetDel(ctx, redisKeyPrefix+key).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume access key: %w", err)
	}
	return true, nil
}
