// ABOUTME: Redis implementation of the Store interface using go-redis
// ABOUTME: One string key per session; SET with EX provides the sliding expiration window

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore implements the Store interface on top of a Redis server.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	s := NewRedisStoreFromClient(client, cfg.TTL)
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	s.logger.Info("Redis store initialized", "addr", cfg.Addr, "db", cfg.DB, "ttl", s.ttl)
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client. A zero ttl selects DefaultTTL.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "store"),
	}
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Load returns the history under key, or an empty History when the key is
// absent. Redis evicts expired keys itself.
func (s *RedisStore) Load(ctx context.Context, key string) (History, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return History{}, nil
	}
	if err != nil {
		return nil, unavailable("load", err)
	}

	var history History
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, unavailable("load", fmt.Errorf("decoding history for %q: %w", key, err))
	}
	if history == nil {
		history = History{}
	}
	return history, nil
}

// Save overwrites key and resets its TTL.
func (s *RedisStore) Save(ctx context.Context, key string, history History) error {
	value, err := json.Marshal(history.Clone())
	if err != nil {
		return unavailable("save", fmt.Errorf("encoding history: %w", err))
	}

	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return unavailable("save", err)
	}

	s.logger.Debug("saved history", "key", key, "messages", len(history), "size", len(value))
	return nil
}

// Clear deletes key. DEL on a missing key returns 0 and no error.
func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return unavailable("clear", err)
	}
	s.logger.Debug("cleared history", "key", key)
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	s.logger.Info("closing Redis store")
	return s.client.Close()
}
