// Package cache holds short-lived read caches in front of the repositories.
package cache

import (
	"sync"
	"time"

	"attendance-sync-api/internal/metrics"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is a TTL cache of query results with wholesale invalidation. A nil
// *Cache, or one built with Enabled false, never hits.
//
// Every Invalidate starts a new generation. Readers that load from the store
// take Generation first and write back with SetIfCurrent, so a result read
// before an invalidation is never cached after it.
type Cache[V any] struct {
	name    string
	ttl     time.Duration
	store   *ristretto.Cache[string, V]
	metrics *metrics.Metrics

	mu  sync.Mutex
	gen uint64
}

// Config configures a Cache.
type Config struct {
	Name    string
	Enabled bool
	TTL     time.Duration
	// MaxEntries bounds the number of cached results.
	MaxEntries int64
}

// New creates a cache. m may be nil.
func New[V any](cfg Config, m *metrics.Metrics) (*Cache[V], error) {
	c := &Cache[V]{name: cfg.Name, ttl: cfg.TTL, metrics: m}
	if !cfg.Enabled || cfg.TTL <= 0 {
		return c, nil
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}

	store, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	c.store = store
	return c, nil
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || c.store == nil {
		return zero, false
	}
	v, ok := c.store.Get(key)
	c.metrics.RecordCacheLookup(c.name, ok)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores value under key for the configured TTL.
func (c *Cache[V]) Set(key string, value V) {
	if c == nil || c.store == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

// Generation identifies the current invalidation epoch.
func (c *Cache[V]) Generation() uint64 {
	if c == nil || c.store == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfCurrent stores value only if no Invalidate happened since gen was
// taken. It reports whether the value was stored.
func (c *Cache[V]) SetIfCurrent(key string, value V, gen uint64) bool {
	if c == nil || c.store == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.set(key, value)
	return true
}

func (c *Cache[V]) set(key string, value V) {
	c.store.SetWithTTL(key, value, 1, c.ttl)
	c.store.Wait()
}

// Invalidate drops every entry and starts a new generation.
func (c *Cache[V]) Invalidate() {
	if c == nil || c.store == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.store.Clear()
}

// Close releases the cache's background goroutines.
func (c *Cache[V]) Close() {
	if c == nil || c.store == nil {
		return
	}
	c.store.Close()
}
