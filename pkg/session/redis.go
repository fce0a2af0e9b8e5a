package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "research:session:"

// RedisRepository stores sessions as JSON strings with a sliding TTL.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository connects to the Redis instance at url.
func NewRedisRepository(ctx context.Context, url string, ttl time.Duration) (*RedisRepository, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisRepository{client: client, ttl: ttl}, nil
}

func (r *RedisRepository) Get(ctx context.Context, id uuid.UUID) (*Store, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return decode(data)
}

func (r *RedisRepository) Save(ctx context.Context, s *Store) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKeyPrefix+s.ID.String(), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
