// Package cache keeps the outcome of every geocoding attempt keyed by normalized address
// and decides when a failed address may be sent to the geocoder again.
package cache

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/UnknownOlympus/patrol/internal/address"
	"github.com/UnknownOlympus/patrol/internal/metrics"
	"github.com/UnknownOlympus/patrol/internal/models"
)

// DefaultRetryInterval is how long a failed address waits before it is eligible again.
const DefaultRetryInterval = 6 * time.Hour

// Store is the durable backing of the cache. Save always receives the complete mapping.
type Store interface {
	Load(ctx context.Context) (map[string]models.CacheEntry, error)
	Save(ctx context.Context, entries map[string]models.CacheEntry) error
}

// Cache is the in-memory geocode cache. All map access goes through mu; store I/O never
// happens while mu is held.
type Cache struct {
	log           *slog.Logger
	store         Store
	metrics       *metrics.Metrics
	retryInterval time.Duration

	mu      sync.Mutex
	entries map[string]models.CacheEntry

	persistMu sync.Mutex // serializes writes to the store
}

// New creates an empty cache backed by store. A non-positive retryInterval falls back
// to DefaultRetryInterval.
func New(log *slog.Logger, store Store, m *metrics.Metrics, retryInterval time.Duration) *Cache {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}

	return &Cache{
		log:           log,
		store:         store,
		metrics:       m,
		retryInterval: retryInterval,
		entries:       make(map[string]models.CacheEntry),
	}
}

// Load replaces the in-memory content with what the store holds. A missing or unreadable
// source leaves the cache empty; the error is logged and not returned.
func (c *Cache) Load(ctx context.Context) {
	loaded, err := c.store.Load(ctx)
	if err != nil {
		c.log.WarnContext(ctx, "Unable to load geocode cache, starting empty", "error", err)
		loaded = nil
	}
	if loaded == nil {
		loaded = make(map[string]models.CacheEntry)
	}

	c.mu.Lock()
	c.entries = loaded
	size := len(c.entries)
	c.mu.Unlock()

	c.setSize(size)
	c.log.InfoContext(ctx, "Loaded geocoded locations", "count", size)
}

// Get returns the entry stored for the address, if any.
func (c *Cache) Get(addr string) (models.CacheEntry, bool) {
	key := address.CacheKey(addr)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	return entry, ok
}

// Put overwrites the entry for the address and persists the whole cache. Persistence is
// best effort: a failure is logged and the in-memory state stays authoritative.
func (c *Cache) Put(ctx context.Context, addr string, entry models.CacheEntry) {
	key := address.CacheKey(addr)

	c.mu.Lock()
	c.entries[key] = entry
	size := len(c.entries)
	c.mu.Unlock()

	c.setSize(size)
	c.Persist(ctx)
}

// Persist writes a snapshot of the cache to the store.
func (c *Cache) Persist(ctx context.Context) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	if err := c.store.Save(ctx, c.Snapshot()); err != nil {
		c.log.ErrorContext(ctx, "Failed to persist geocode cache", "error", err)
		if c.metrics != nil {
			c.metrics.CachePersistErrs.Inc()
		}
	}
}

// Snapshot returns a copy of every entry keyed by cache key.
func (c *Cache) Snapshot() map[string]models.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maps.Clone(c.entries)
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// ShouldAttempt applies the retry policy to the live cache state for addr.
func (c *Cache) ShouldAttempt(addr string, now time.Time) bool {
	if addr == "" {
		return false
	}

	entry, ok := c.Get(addr)
	if !ok {
		return true
	}

	return ShouldAttempt(&entry, now, c.retryInterval)
}

func (c *Cache) setSize(size int) {
	if c.metrics != nil {
		c.metrics.CacheEntries.Set(float64(size))
	}
}
