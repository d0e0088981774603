package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "neuracall:session:"

// SessionCache keeps enriched session snapshots in Redis so a resolver
// restart can skip the enrichment round-trips. All operations are
// best-effort; callers treat errors as a cache miss.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache connects to Redis. Returns an error when the server
// is unreachable so callers can fall back to running without a cache.
func NewSessionCache(addr, password string, db int, ttl time.Duration) (*SessionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}

	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SessionCache{client: client, ttl: ttl}, nil
}

// Get loads a cached snapshot into out. Returns false on miss or on
// any Redis/decode error.
func (c *SessionCache) Get(ctx context.Context, userID string, out interface{}) bool {
	data, err := c.client.Get(ctx, sessionKeyPrefix+userID).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// Set stores a snapshot under the user's key.
func (c *SessionCache) Set(ctx context.Context, userID string, snapshot interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	return c.client.Set(ctx, sessionKeyPrefix+userID, data, c.ttl).Err()
}

// Invalidate drops the cached snapshot for a user.
func (c *SessionCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, sessionKeyPrefix+userID).Err()
}

// Close releases the underlying connection.
func (c *SessionCache) Close() error {
	return c.client.Close()
}
