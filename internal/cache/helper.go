package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"rebound/internal/middleware"
	"rebound/internal/observability"

	"github.com/redis/go-redis/v9"
)

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which should populate dest),
// then stores the result in Redis with ttl. A Redis failure falls through to
// fetch so the cache never decides the outcome of a read.
//
// When guard is set, the write only lands if guard has not changed since
// before fetch ran. Invalidators bump guard, so a value computed before an
// invalidation is never stored after it.
func Aside(ctx context.Context, key, guard string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues("error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	case found:
		observability.CacheLookups.WithLabelValues("hit").Inc()
		return nil
	default:
		observability.CacheLookups.WithLabelValues("miss").Inc()
	}

	var gen string
	guarded := guard != "" && err == nil && client != nil
	if guarded {
		if gen, err = readGeneration(ctx, guard); err != nil {
			guarded = false
		}
	}

	if err := fetch(); err != nil {
		return err
	}

	if guard == "" {
		// Best effort.
		_ = SetJSON(ctx, key, dest, ttl)
		return nil
	}
	if guarded {
		if err := setIfGeneration(ctx, key, guard, gen, dest, ttl); err != nil && !errors.Is(err, errStaleGeneration) {
			middleware.Logger.WarnContext(ctx, "cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

var errStaleGeneration = errors.New("cache generation changed")

func readGeneration(ctx context.Context, guard string) (string, error) {
	gen, err := client.Get(ctx, guard).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return gen, err
}

// setIfGeneration writes v under key inside a WATCH on guard.
func setIfGeneration(ctx context.Context, key, guard, gen string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	err = client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, guard).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, guard)
	if errors.Is(err, redis.TxFailedErr) {
		return errStaleGeneration
	}
	return err
}
