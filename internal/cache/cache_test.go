package cache_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/UnknownOlympus/patrol/internal/cache"
	"github.com/UnknownOlympus/patrol/internal/metrics"
	"github.com/UnknownOlympus/patrol/internal/models"
	"github.com/UnknownOlympus/patrol/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCache_GetPut(t *testing.T) {
	store := mocks.NewStore(t)
	c := cache.New(slog.Default(), store, nil, time.Hour)
	ctx := t.Context()

	entry := models.CacheEntry{Lat: ptr(32.78), Lon: ptr(-96.8), Label: "Main St", Provider: "nominatim"}

	store.On("Save", ctx, map[string]models.CacheEntry{"100 main st, dallas, tx": entry}).Return(nil).Once()

	c.Put(ctx, "100 MAIN ST,  Dallas, TX", entry)

	got, ok := c.Get("  100 main st, DALLAS, tx")
	require.True(t, ok)
	assert.Equal(t, entry, got)
	assert.Equal(t, 1, c.Len())

	_, ok = c.Get("200 ELM ST, Dallas, TX")
	assert.False(t, ok)
}

func TestCache_PutOverwrites(t *testing.T) {
	store := mocks.NewStore(t)
	c := cache.New(slog.Default(), store, nil, time.Hour)
	ctx := t.Context()

	store.On("Save", ctx, mock.Anything).Return(nil).Twice()

	c.Put(ctx, "A ST, Dallas, TX", models.CacheEntry{LastAttempt: "first"})
	c.Put(ctx, "a st, dallas, tx", models.CacheEntry{Lat: ptr(1), Lon: ptr(2), LastAttempt: "second"})

	got, ok := c.Get("A ST, Dallas, TX")
	require.True(t, ok)
	assert.Equal(t, "second", got.LastAttempt)
	assert.Equal(t, 1, c.Len())
}

func TestCache_PersistFailureIsNotFatal(t *testing.T) {
	store := mocks.NewStore(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	c := cache.New(slog.Default(), store, m, time.Hour)
	ctx := t.Context()

	store.On("Save", ctx, mock.Anything).Return(assert.AnError).Once()

	assert.NotPanics(t, func() {
		c.Put(ctx, "A ST, Dallas, TX", models.CacheEntry{})
	})

	_, ok := c.Get("A ST, Dallas, TX")
	assert.True(t, ok, "in-memory state stays authoritative")
	assert.InDelta(t, 1, testutil.ToFloat64(m.CachePersistErrs), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheEntries), 0)
}

func TestCache_Load(t *testing.T) {
	ctx := t.Context()

	t.Run("store content replaces memory", func(t *testing.T) {
		store := mocks.NewStore(t)
		c := cache.New(slog.Default(), store, nil, time.Hour)
		stored := map[string]models.CacheEntry{
			"a st, dallas, tx": {Lat: ptr(1), Lon: ptr(2)},
			"b st, dallas, tx": {LastAttempt: "2025-01-01T00:00:00Z"},
		}

		store.On("Load", ctx).Return(stored, nil).Once()

		c.Load(ctx)

		assert.Equal(t, 2, c.Len())
		assert.Equal(t, stored, c.Snapshot())
	})

	t.Run("store error yields empty cache", func(t *testing.T) {
		store := mocks.NewStore(t)
		c := cache.New(slog.Default(), store, nil, time.Hour)

		store.On("Load", ctx).Return(nil, assert.AnError).Once()

		c.Load(ctx)

		assert.Equal(t, 0, c.Len())
		assert.NotNil(t, c.Snapshot())
	})
}

func TestCache_ShouldAttempt(t *testing.T) {
	store := mocks.NewStore(t)
	c := cache.New(slog.Default(), store, nil, 0)
	ctx := t.Context()
	now := time.Now()

	store.On("Save", ctx, mock.Anything).Return(nil)

	assert.False(t, c.ShouldAttempt("", now), "no address")
	assert.True(t, c.ShouldAttempt("A ST, Dallas, TX", now), "unknown address")

	c.Put(ctx, "A ST, Dallas, TX", models.CacheEntry{LastAttempt: cache.FormatTime(now)})
	assert.False(t, c.ShouldAttempt("a st, dallas, tx", now), "recent failure")
	assert.True(t, c.ShouldAttempt("a st, dallas, tx", now.Add(cache.DefaultRetryInterval+time.Second)))

	c.Put(ctx, "B ST, Dallas, TX", models.CacheEntry{Lat: ptr(1), Lon: ptr(2), LastAttempt: cache.FormatTime(now)})
	assert.False(t, c.ShouldAttempt("B ST, Dallas, TX", now.Add(365*24*time.Hour)), "resolved")
}

func TestCache_ConcurrentAccess(t *testing.T) {
	store := mocks.NewStore(t)
	c := cache.New(slog.Default(), store, nil, time.Hour)
	ctx := context.Background()

	store.On("Save", ctx, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Put(ctx, "A ST, Dallas, TX", models.CacheEntry{Lat: ptr(float64(i)), Lon: ptr(float64(i))})
		}()
		go func() {
			defer wg.Done()
			if entry, ok := c.Get("A ST, Dallas, TX"); ok {
				assert.Equal(t, *entry.Lat, *entry.Lon)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Len())
}
