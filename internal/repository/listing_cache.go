package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// listingVersionKey is bumped on every write to the occurrences table, which
// implicitly expires every cached listing built against the old version.
const listingVersionKey = "events:ver"

// ListingCache caches serialized event listings in Redis with version-key
// invalidation. A nil cache (or one built without a client) is valid and
// turns every operation into a no-op, so callers never branch on whether
// Redis is wired.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListingCache wraps a Redis client. client may be nil.
func NewListingCache(client *redis.Client, ttl time.Duration) *ListingCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ListingCache{client: client, ttl: ttl}
}

func (c *ListingCache) enabled() bool {
	return c != nil && c.client != nil
}

func (c *ListingCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, listingVersionKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return ver, nil
}

func (c *ListingCache) key(suffix string, ver int64) string {
	return fmt.Sprintf("events:v%d:%s", ver, suffix)
}

// Get loads a cached listing into dest. The boolean reports a hit; any Redis
// or decode failure counts as a miss.
func (c *ListingCache) Get(ctx context.Context, suffix string, dest interface{}) bool {
	if !c.enabled() {
		return false
	}
	ver, err := c.version(ctx)
	if err != nil {
		return false
	}
	raw, err := c.client.Get(ctx, c.key(suffix, ver)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// Set stores a listing under the current version. Best effort.
func (c *ListingCache) Set(ctx context.Context, suffix string, value interface{}) {
	if !c.enabled() {
		return
	}
	ver, err := c.version(ctx)
	if err != nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(suffix, ver), raw, c.ttl).Err()
}

// Invalidate advances the version so existing entries stop matching; the
// stale keys age out via TTL.
func (c *ListingCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	_ = c.client.Incr(ctx, listingVersionKey).Err()
}
