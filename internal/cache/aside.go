package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Aside implements the cache-aside pattern: serve dest from Redis when the
// key is warm, otherwise run fill and write the result back with the given
// TTL. Cache failures are never fatal; the caller only sees fill's error.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fill func() error) error {
	if client != nil {
		raw, err := client.Get(ctx, key).Result()
		if err == nil {
			if uerr := json.Unmarshal([]byte(raw), dest); uerr == nil {
				return nil
			}
			// Corrupt entry; drop it and fall through to fill.
			client.Del(ctx, key)
		} else if !errors.Is(err, redis.Nil) {
			// Redis unreachable; fall through to fill.
			_ = err
		}
	}

	if err := fill(); err != nil {
		return err
	}

	if client != nil {
		if data, merr := json.Marshal(dest); merr == nil {
			client.Set(ctx, key, data, ttl)
		}
	}

	return nil
}
