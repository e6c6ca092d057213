package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/patrol/internal/cache"
	"github.com/UnknownOlympus/patrol/internal/calls"
	"github.com/UnknownOlympus/patrol/internal/geocoding"
	"github.com/UnknownOlympus/patrol/internal/metrics"
	"github.com/UnknownOlympus/patrol/internal/models"
)

// Resolver turns one address into coordinates, trying as many queries as it needs.
type Resolver interface {
	Resolve(ctx context.Context, addr string) (*models.Coordinates, error)
}

// sleepFunc pauses for a duration or until the context is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

// EnricherConfig holds the pacing of the enrichment worker.
type EnricherConfig struct {
	WorkerDelay time.Duration // Pause after every processed candidate
	IdleDelay   time.Duration // Pause when no address is eligible
	MaxPerCycle int           // Attempts allowed between two refreshes, 0 for no cap
}

// Enricher is the enrichment worker: it geocodes one unmapped address at a time,
// writes the outcome to the cache and onto the board, then waits before the next one.
type Enricher struct {
	log          *slog.Logger     // Logger for logging worker activities
	cache        *cache.Cache     // Geocode cache consulted and written by the worker
	board        *calls.Board     // Active calls updated in place after every commit
	resolver     Resolver         // Query cascade against the geocoding provider
	providerName string           // Name of the provider recorded in cache entries
	metrics      *metrics.Metrics // Metrics for tracking worker progress
	cfg          EnricherConfig   // Delays and per-cycle cap
	now          func() time.Time // Clock, replaced in tests
	sleep        sleepFunc        // Pause between steps, replaced in tests
}

// NewEnricher creates a new enrichment worker.
func NewEnricher(
	log *slog.Logger,
	geoCache *cache.Cache,
	board *calls.Board,
	resolver Resolver,
	providerName string,
	m *metrics.Metrics,
	cfg EnricherConfig,
) *Enricher {
	return &Enricher{
		log:          log,
		cache:        geoCache,
		board:        board,
		resolver:     resolver,
		providerName: providerName,
		metrics:      m,
		cfg:          cfg,
		now:          time.Now,
		sleep:        geocoding.Sleep,
	}
}

// Run processes candidates until the context is cancelled. After a processed candidate it
// waits WorkerDelay; when there is nothing to do it waits IdleDelay.
func (e *Enricher) Run(ctx context.Context) {
	e.log.InfoContext(ctx, "Enrichment worker started...")

	for {
		delay := e.cfg.IdleDelay
		if e.Step(ctx) {
			delay = e.cfg.WorkerDelay
		}

		if err := e.sleep(ctx, delay); err != nil {
			e.log.InfoContext(ctx, "Enrichment worker stopped.")
			return
		}
	}
}

// Step selects at most one eligible address and geocodes it. It reports whether a
// candidate was processed.
func (e *Enricher) Step(ctx context.Context) bool {
	if e.cfg.MaxPerCycle > 0 && e.board.Attempts() >= e.cfg.MaxPerCycle {
		e.log.DebugContext(ctx, "Geocode budget for this cycle spent", "max", e.cfg.MaxPerCycle)
		return false
	}

	target, ok := e.next()
	if !ok {
		return false
	}

	if e.metrics != nil {
		e.metrics.CandidatesTotal.Inc()
	}
	e.log.DebugContext(ctx, "Geocoding address", "address", target)

	result, err := e.resolver.Resolve(ctx, target)
	if err != nil && !errors.Is(err, geocoding.ErrNoResult) {
		// Interrupted (shutdown): leave the cache untouched so the address stays eligible.
		e.log.WarnContext(ctx, "Geocoding interrupted", "address", target, "error", err)
		return true
	}

	e.commit(ctx, target, result)
	return true
}

// next returns the first address on the board the retry policy allows, judged against
// the live cache rather than the possibly stale coordinates on the board.
func (e *Enricher) next() (string, bool) {
	now := e.now()
	for _, addr := range e.board.Addresses() {
		if e.cache.ShouldAttempt(addr, now) {
			return addr, true
		}
	}

	return "", false
}

func (e *Enricher) commit(ctx context.Context, addr string, result *models.Coordinates) {
	stamp := cache.FormatTime(e.now())
	entry := models.CacheEntry{
		Provider:    e.providerName,
		LastAttempt: stamp,
		UpdatedAt:   stamp,
	}
	if result != nil {
		lat, lon := result.Latitude, result.Longitude
		entry.Lat = &lat
		entry.Lon = &lon
		entry.Label = result.Label
	}

	e.cache.Put(ctx, addr, entry)
	attempts := e.board.IncAttempts()
	updated := e.board.Apply(addr, entry)
	updateCallGauges(e.metrics, e.board)

	if result == nil {
		e.log.InfoContext(ctx, "Address could not be geocoded", "address", addr, "attempts", attempts)
		return
	}

	e.log.DebugContext(ctx, "Address geocoded",
		"address", addr,
		"lat", result.Latitude,
		"lon", result.Longitude,
		"label", result.Label,
		"calls_updated", updated,
	)
}

func updateCallGauges(m *metrics.Metrics, board *calls.Board) {
	if m == nil {
		return
	}

	summary := board.Snapshot()
	m.Calls.WithLabelValues("mapped").Set(float64(summary.MappedCalls))
	m.Calls.WithLabelValues("unmapped").Set(float64(summary.UnmappedCalls))
}
