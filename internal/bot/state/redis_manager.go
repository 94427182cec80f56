package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladimiradmaev/calorie-helper/internal/config"
)

// RedisManager keeps contexts in Redis so they survive restarts
type RedisManager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisManager connects to Redis and checks the connection
func NewRedisManager(cfg config.StateConfig) (*RedisManager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisManager(client, cfg.TTL), nil
}

func newRedisManager(client *redis.Client, ttl time.Duration) *RedisManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisManager{client: client, ttl: ttl}
}

func contextKey(userID int64) string {
	return fmt.Sprintf("user:%d:context", userID)
}

// Get loads the user's context; a missing key means idle
func (m *RedisManager) Get(ctx context.Context, userID int64) (*Context, error) {
	data, err := m.client.Get(ctx, contextKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Context{State: None}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &c, nil
}

// Set stores the user's context; idle contexts expire after the TTL
func (m *RedisManager) Set(ctx context.Context, userID int64, c *Context) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := m.client.Set(ctx, contextKey(userID), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Clear removes the user's context
func (m *RedisManager) Clear(ctx context.Context, userID int64) error {
	if err := m.client.Del(ctx, contextKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (m *RedisManager) Close() error {
	return m.client.Close()
}
