package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session hashes in Redis
const DefaultRedisPrefix = "auth:session:"

// RedisBackend stores each session as a Redis hash with a TTL
type RedisBackend struct {
	client *redis.Client
	prefix string
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend wraps an existing client
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// NewRedisBackendFromURL parses redisURL and checks the connection
func NewRedisBackendFromURL(ctx context.Context, redisURL, prefix string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisBackend(client, prefix), nil
}

// Client returns the underlying Redis client
func (r *RedisBackend) Client() *redis.Client {
	return r.client
}

// Close closes the Redis connection
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) Load(ctx context.Context, key string) (map[string]string, bool, error) {
	data, err := r.client.HGetAll(ctx, r.prefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load session: %w", err)
	}

	// a missing hash comes back empty, not as redis.Nil
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

func (r *RedisBackend) Save(ctx context.Context, key string, data map[string]string, ttl time.Duration) error {
	k := r.prefix + key

	if len(data) == 0 {
		return r.Delete(ctx, key)
	}

	fields := make([]any, 0, len(data)*2)
	for field, value := range data {
		fields = append(fields, field, value)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k, fields...)
		if ttl > 0 {
			pipe.Expire(ctx, k, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisBackend) Touch(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Expire(ctx, r.prefix+key, ttl).Err(); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
