package tilesource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 24 * time.Hour

type RedisSource struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Options *redis.Options
	// Prefix namespaces the keys, so several sources can share a database.
	Prefix string
	// TTL of stored tiles; 0 means the default, negative means no expiry.
	TTL time.Duration
}

func NewRedisSource(ctx context.Context, cfg RedisConfig) (*RedisSource, error) {
	client := redis.NewClient(cfg.Options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultRedisTTL
	}
	if ttl < 0 {
		ttl = 0
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "tile"
	}

	return &RedisSource{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

var _ Source = (*RedisSource)(nil)

func (s *RedisSource) keyFor(z, x, y int) string {
	return fmt.Sprintf("%s:%d:%d:%d", s.prefix, z, x, y)
}

func (s *RedisSource) GetTile(ctx context.Context, z, x, y int) ([]byte, error) {
	data, err := s.client.Get(ctx, s.keyFor(z, x, y)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTileNotFound
		}
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	return data, nil
}

func (s *RedisSource) PutTile(ctx context.Context, z, x, y int, data []byte) error {
	if err := s.client.Set(ctx, s.keyFor(z, x, y), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

func (s *RedisSource) GetInfo(_ context.Context) (Info, error) {
	return defaultInfo(s.client.Options().Addr, "redis"), nil
}

func (s *RedisSource) Close() error {
	return s.client.Close()
}
