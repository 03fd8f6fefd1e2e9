package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// JSON wraps Redis helpers for JSON payloads. A nil client or non-positive TTL disables it.
type JSON struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func (c *JSON) enabled() bool {
	return c != nil && c.Client != nil && c.TTL > 0
}

func (c *JSON) key(key string) string {
	if c.Prefix == "" {
		return key
	}
	return c.Prefix + ":" + key
}

// Get unmarshals a cached payload into dst. It reports whether the key existed.
func (c *JSON) Get(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.Client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set serialises v and stores it with the configured TTL.
func (c *JSON) Set(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, c.key(key), data, c.TTL).Err()
}

// Delete drops key, used when the cached record is known to have changed.
func (c *JSON) Delete(ctx context.Context, key string) error {
	if !c.enabled() || key == "" {
		return nil
	}
	return c.Client.Del(ctx, c.key(key)).Err()
}
