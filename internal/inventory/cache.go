package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheVersionKey is shared by every process on the same Redis, so one
// bump invalidates the snapshots cached by all of them.
const cacheVersionKey = "inventory:version"

// Cache stores computed snapshots in Redis. Entries are keyed by a global
// version, so a bump drops every cached snapshot at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchSnapshot loads a cached snapshot or builds and stores it with loader.
func (c *Cache) FetchSnapshot(ctx context.Context, key string, loader func(context.Context) (Snapshot, error)) (Snapshot, error) {
	if loader == nil {
		return Snapshot{}, errors.New("inventory: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var snap Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return Snapshot{}, fmt.Errorf("inventory: decode cached snapshot: %w", err)
		}
		return snap, nil
	}
	if !errors.Is(err, redis.Nil) {
		return Snapshot{}, err
	}
	snap, err := loader(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Bump invalidates every cached snapshot. Old entries expire by TTL.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
