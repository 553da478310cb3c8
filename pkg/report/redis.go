package report

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis summary backend.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string `yaml:"address" env:"ADDRESS"`

	// Password for Redis authentication (optional)
	Password string `yaml:"password" env:"PASSWORD"`

	// Database number to use (default: 0)
	Database int `yaml:"database" env:"DATABASE"`

	// Prefix is prepended to all keys (e.g., "sweep:runs:")
	Prefix string `yaml:"prefix" env:"PREFIX"`

	// TTL is the time-to-live for summary keys (0 = no expiration)
	TTL time.Duration `yaml:"ttl" env:"TTL"`

	// Timeout for Redis operations
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// Keep bounds the run index list.
	Keep int64 `yaml:"keep" env:"KEEP"`
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address: address,
		Prefix:  "sweep:runs:",
		TTL:     7 * 24 * time.Hour,
		Timeout: 5 * time.Second,
		Keep:    1000,
	}
}

// RedisBackend stores summaries under <prefix><id> and pushes the id onto
// the <prefix>index list, newest first.
type RedisBackend struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBackend{cfg: cfg, client: client}, nil
}

func (b *RedisBackend) key(id string) string {
	return b.cfg.Prefix + id
}

func (b *RedisBackend) indexKey() string {
	return b.cfg.Prefix + "index"
}

// Publish implements Backend.
func (b *RedisBackend) Publish(ctx context.Context, s *Summary) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	data, err := s.JSON()
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.key(s.ID), data, b.cfg.TTL)
	pipe.LPush(ctx, b.indexKey(), s.ID)
	if b.cfg.Keep > 0 {
		pipe.LTrim(ctx, b.indexKey(), 0, b.cfg.Keep-1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save summary to Redis: %w", err)
	}
	return nil
}

// Name implements Backend.
func (b *RedisBackend) Name() string {
	return "redis"
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
