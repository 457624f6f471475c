// Package pathcache shares path query results across instances through Redis.
package pathcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/seuros/pathflow/internal/journey"
	"github.com/seuros/pathflow/internal/logging"
	"github.com/seuros/pathflow/internal/store"
)

const keyPrefix = "pathflow:paths:"

// Source loads path records for a query.
type Source interface {
	Paths(ctx context.Context, q store.PathQuery) ([]journey.PathRecord, error)
}

// Cached decorates a Source with a Redis read-through cache. Redis failures
// degrade to the underlying source.
type Cached struct {
	source Source
	rdb    *redis.Client
	ttl    time.Duration
}

func New(source Source, rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{source: source, rdb: rdb, ttl: ttl}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	logging.L().Info("connected to redis", slog.String("addr", opts.Addr))
	return rdb, nil
}

func (c *Cached) Paths(ctx context.Context, q store.PathQuery) ([]journey.PathRecord, error) {
	key := keyPrefix + q.Key()

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var records []journey.PathRecord
		if jsonErr := json.Unmarshal(raw, &records); jsonErr == nil {
			return records, nil
		}
		logging.L().Warn("discarding corrupt path cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		logging.L().Warn("path cache read failed", "error", err)
	}

	records, err := c.source.Paths(ctx, q)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(records); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			logging.L().Warn("path cache write failed", "error", err)
		}
	}
	return records, nil
}

// Invalidate drops the cached result of one query.
func (c *Cached) Invalidate(ctx context.Context, q store.PathQuery) error {
	return c.rdb.Del(ctx, keyPrefix+q.Key()).Err()
}
