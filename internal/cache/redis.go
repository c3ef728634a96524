package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "cwelens:"

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0").
	URL string
	// TTL expires entries; zero keeps them until cleared.
	TTL time.Duration
	// Prefix namespaces every key.
	Prefix string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// RedisStore is a Backend shared across machines.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultKeyPrefix
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 3 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: opts.TTL, prefix: opts.Prefix}, nil
}

// Get retrieves a value. Errors other than a miss are treated as a miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores a value with the configured TTL.
func (s *RedisStore) Set(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Clear deletes every key under the store's prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += 500 {
		end := min(start+500, len(keys))
		if err := s.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

// Stats counts keys and their total value size. Ages are not tracked.
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Backend: "redis", Entries: len(keys)}
	if len(keys) == 0 {
		return stats, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.StrLen(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis strlen: %w", err)
	}
	for _, c := range cmds {
		stats.TotalSize += c.Val()
	}
	return stats, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 200).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		out = append(out, batch...)
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}
