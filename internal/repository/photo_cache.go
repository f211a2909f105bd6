package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PhotoCache keeps bytes read through from the object store.  A nil client
// turns every method into a no-op so the service runs without Redis.
type PhotoCache struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	maxSize int
}

func NewPhotoCache(client *redis.Client, prefix string, ttl time.Duration, maxSize int) *PhotoCache {
	return &PhotoCache{client: client, prefix: prefix, ttl: ttl, maxSize: maxSize}
}

func (c *PhotoCache) key(k string) string { return c.prefix + ":" + k }

// Get returns the cached bytes for an object key.  Redis errors count as a miss.
func (c *PhotoCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	b, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

// Set stores data unless it exceeds the configured size.
func (c *PhotoCache) Set(ctx context.Context, key string, data []byte) error {
	if c == nil || c.client == nil || (c.maxSize > 0 && len(data) > c.maxSize) {
		return nil
	}
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}

// Invalidate drops a cached object.
func (c *PhotoCache) Invalidate(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Del(ctx, c.key(key)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
