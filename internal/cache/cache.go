// Package cache keeps raw upstream feed bodies in Redis so the public proxy
// endpoint does not hit YouTube on every request.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL matches the s-maxage the proxy advertises.
const DefaultTTL = time.Hour

// RawFeedCache stores raw feed bodies keyed by channel.
type RawFeedCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// ParseRedisURL turns a Redis URL into client options.
// Supports formats:
//   - redis://[:password@]host:port[/db]
//   - rediss://[:password@]host:port[/db] (TLS)
//   - host:port (legacy format, no password)
func ParseRedisURL(redisURL string) (*redis.Options, error) {
	if redisURL == "" {
		return nil, errors.New("redis URL is empty")
	}

	if !strings.Contains(redisURL, "://") {
		return &redis.Options{Addr: redisURL}, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return opt, nil
}

// NewRawFeedCache dials nothing; the first command opens the connection.
func NewRawFeedCache(redisURL, prefix string, ttl time.Duration) (*RawFeedCache, error) {
	opt, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	return New(redis.NewClient(opt), prefix, ttl), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string, ttl time.Duration) *RawFeedCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RawFeedCache{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the Redis key for a channel's raw feed.
func (c *RawFeedCache) Key(channelID string) string {
	return c.prefix + channelID
}

// TTL reports how long entries live.
func (c *RawFeedCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached body. A miss is (nil, false, nil).
func (c *RawFeedCache) Get(ctx context.Context, channelID string) ([]byte, bool, error) {
	body, err := c.client.Get(ctx, c.Key(channelID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached feed: %w", err)
	}
	return body, true, nil
}

// Set stores body for the configured TTL.
func (c *RawFeedCache) Set(ctx context.Context, channelID string, body []byte) error {
	if err := c.client.Set(ctx, c.Key(channelID), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache feed: %w", err)
	}
	return nil
}

// Invalidate drops the cached body for a channel.
func (c *RawFeedCache) Invalidate(ctx context.Context, channelID string) error {
	if err := c.client.Del(ctx, c.Key(channelID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached feed: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *RawFeedCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *RawFeedCache) Close() error {
	return c.client.Close()
}
