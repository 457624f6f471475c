// Package cache keeps derived flows in memory between identical requests.
package cache

import (
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/seuros/pathflow/internal/journey"
	"github.com/seuros/pathflow/internal/logging"
)

// Cache wraps ristretto with flow-specific accessors.
type Cache struct {
	client *ristretto.Cache
	ttl    time.Duration
}

// New creates a cache bounded to maxSizeMB. Entries expire after ttl.
func New(maxSizeMB int, ttl time.Duration) (*Cache, error) {
	maxCost := int64(maxSizeMB) * 1024 * 1024

	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * int64(maxSizeMB) * 1024,
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	logging.L().Info("flow cache initialized",
		slog.Int("max_size_mb", maxSizeMB),
		slog.Duration("ttl", ttl),
	)

	return &Cache{client: client, ttl: ttl}, nil
}

// Flow returns a cached flow.
func (c *Cache) Flow(key string) (*journey.Flow, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	v, ok := c.client.Get(key)
	if !ok {
		return nil, false
	}
	flow, ok := v.(*journey.Flow)
	return flow, ok
}

// SetFlow stores a flow. Its cost is estimated from the node count.
func (c *Cache) SetFlow(key string, flow *journey.Flow) bool {
	if c == nil || c.client == nil || flow == nil {
		return false
	}
	return c.client.SetWithTTL(key, flow, flowCost(flow), c.ttl)
}

// Wait blocks until buffered writes are applied.
func (c *Cache) Wait() {
	if c != nil && c.client != nil {
		c.client.Wait()
	}
}

// Clear drops every entry, e.g. after a refresh reloads the underlying records.
func (c *Cache) Clear() {
	if c != nil && c.client != nil {
		c.client.Clear()
	}
}

func (c *Cache) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
		logging.L().Info("flow cache closed")
	}
}

// MetricsSnapshot is a point-in-time view of cache counters.
type MetricsSnapshot struct {
	Hits         uint64  `json:"hits"`
	Misses       uint64  `json:"misses"`
	KeysAdded    uint64  `json:"keys_added"`
	KeysEvicted  uint64  `json:"keys_evicted"`
	SetsRejected uint64  `json:"sets_rejected"`
	HitRatio     float64 `json:"hit_ratio"`
	TTLSeconds   int     `json:"ttl_seconds"`
}

func (c *Cache) Snapshot() MetricsSnapshot {
	if c == nil || c.client == nil || c.client.Metrics == nil {
		return MetricsSnapshot{}
	}
	m := c.client.Metrics
	return MetricsSnapshot{
		Hits:         m.Hits(),
		Misses:       m.Misses(),
		KeysAdded:    m.KeysAdded(),
		KeysEvicted:  m.KeysEvicted(),
		SetsRejected: m.SetsRejected(),
		HitRatio:     m.Ratio(),
		TTLSeconds:   int(c.ttl.Seconds()),
	}
}

// flowCost approximates the retained bytes of a flow.
func flowCost(flow *journey.Flow) int64 {
	const perNode, perLine = 160, 16
	var cost int64 = 64
	for _, col := range flow.Columns {
		for _, n := range col.Nodes {
			cost += perNode + int64(len(n.Name)) + perLine*int64(len(n.Lines)) + 8*int64(len(n.Paths))
		}
	}
	return cost
}
