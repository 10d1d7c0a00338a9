// Package seencache remembers which (installation, day) pairs were accepted
// recently so repeated uploads can be turned away without a database round trip.
// It is an accelerator only: a miss always falls through to Postgres.
package seencache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/digit-srl/diarycollector/internal/domain"
)

const keyPrefix = "dailystats:seen:"

// Cache is a Redis-backed seen-key set with a per-key TTL.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing client.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Dial parses url, connects and pings. It returns (nil, nil) when url is empty,
// meaning the cache is not configured.
func Dial(ctx context.Context, url string, ttl time.Duration) (*Cache, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("seencache.Dial: parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("seencache.Dial: ping: %w", err)
	}

	return New(rdb, ttl), nil
}

// Seen reports whether the key was marked and has not expired.
func (c *Cache) Seen(ctx context.Context, installationID string, date time.Time) (bool, error) {
	n, err := c.rdb.Exists(ctx, Key(installationID, date)).Result()
	if err != nil {
		return false, fmt.Errorf("seencache.Cache.Seen: %w", err)
	}
	return n > 0, nil
}

// MarkSeen records the key for the configured TTL.
func (c *Cache) MarkSeen(ctx context.Context, installationID string, date time.Time) error {
	if err := c.rdb.Set(ctx, Key(installationID, date), 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("seencache.Cache.MarkSeen: %w", err)
	}
	return nil
}

// Health pings Redis.
func (c *Cache) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Key builds the Redis key for an installation's day.
func Key(installationID string, date time.Time) string {
	return keyPrefix + installationID + ":" + domain.DateOnly(date).Format(time.DateOnly)
}
