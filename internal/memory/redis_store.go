package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

// RedisStore implements Store interface using Redis
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration // pending requests expire after ttl
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	// Parse Redis URL
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisStore) pendingKey(sessionID string, intent models.Intent) string {
	return fmt.Sprintf("pending:%s:%s", sessionID, intent)
}

// Load loads a pending request from Redis
func (r *RedisStore) Load(ctx context.Context, sessionID string, intent models.Intent) (*Pending, error) {
	data, err := r.client.Get(ctx, r.pendingKey(sessionID, intent)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending request from Redis: %w", err)
	}

	var pending Pending
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("failed to parse pending request: %w", err)
	}
	return &pending, nil
}

// Save stores a pending request with TTL
func (r *RedisStore) Save(ctx context.Context, pending *Pending) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending request: %w", err)
	}

	if err := r.client.Set(ctx, r.pendingKey(pending.SessionID, pending.Intent), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save pending request to Redis: %w", err)
	}
	return nil
}

// Clear removes pending requests from Redis in one round trip
func (r *RedisStore) Clear(ctx context.Context, sessionID string, intents ...models.Intent) error {
	if len(intents) == 0 {
		return nil
	}
	keys := make([]string, 0, len(intents))
	for _, intent := range intents {
		keys = append(keys, r.pendingKey(sessionID, intent))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear pending request: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection is alive
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
