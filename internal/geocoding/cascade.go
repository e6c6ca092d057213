package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/patrol/internal/address"
	"github.com/UnknownOlympus/patrol/internal/metrics"
	"github.com/UnknownOlympus/patrol/internal/models"
)

// Labels attached to approximated results.
const (
	MidpointLabel     = "Approximate intersection midpoint (street fallback)"
	SingleStreetLabel = "Approximate location (single street fallback)"
)

// ErrNoResult is returned by Resolve when no query of the cascade produced a match.
var ErrNoResult = errors.New("no geocoding query produced a result")

// trustedQueries is how many leading queries (the address itself and the
// "A and B" intersection phrase) are returned as-is when they match.
const trustedQueries = 2

// Cascade resolves an address by trying a fixed sequence of queries against a provider:
// the address itself, then for intersections the "A and B" phrase followed by each
// cross street on its own. Two single-street hits are averaged into a midpoint.
type Cascade struct {
	log          *slog.Logger
	provider     Provider
	providerName string
	metrics      *metrics.Metrics
	delay        time.Duration // pause between two queries of the same cascade
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewCascade creates a cascade over provider. delay is the polite pause inserted
// between consecutive queries; m may be nil.
func NewCascade(
	log *slog.Logger,
	provider Provider,
	providerName string,
	delay time.Duration,
	m *metrics.Metrics,
) *Cascade {
	return &Cascade{
		log:          log,
		provider:     provider,
		providerName: providerName,
		metrics:      m,
		delay:        delay,
		sleep:        Sleep,
	}
}

// Queries returns the ordered, de-duplicated queries tried for addr.
func (c *Cascade) Queries(addr string) []string {
	queries := []string{addr}
	if first, second, ok := address.SplitIntersection(addr); ok {
		queries = append(queries,
			first+" and "+second+address.CitySuffix,
			first+address.CitySuffix,
			second+address.CitySuffix,
		)
	}

	deduped := make([]string, 0, len(queries))
	seen := make(map[string]struct{}, len(queries))
	for _, query := range queries {
		if _, ok := seen[query]; ok {
			continue
		}
		seen[query] = struct{}{}
		deduped = append(deduped, query)
	}

	return deduped
}

// Resolve runs the cascade for addr. A hit on one of the first two queries is returned
// unchanged. Later hits are single-street fallbacks: once two are collected their mean is
// returned, and a lone fallback is returned after the cascade is exhausted. ErrNoResult
// means nothing matched; a context error means the cascade was interrupted, including
// during a lookup, and no outcome should be recorded.
//
// A failed query, whatever the reason, only moves the cascade on to the next one.
func (c *Cascade) Resolve(ctx context.Context, addr string) (*models.Coordinates, error) {
	queries := c.Queries(addr)
	fallbacks := make([]models.Coordinates, 0, 2)

	for idx, query := range queries {
		result := c.lookup(ctx, query)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("geocoding cascade interrupted: %w", err)
		}
		if result != nil {
			if idx < trustedQueries {
				c.observe(outcomeFor(idx))
				return result, nil
			}

			fallbacks = append(fallbacks, *result)
			if len(fallbacks) == 2 {
				c.observe("midpoint")
				return &models.Coordinates{
					Latitude:  (fallbacks[0].Latitude + fallbacks[1].Latitude) / 2,
					Longitude: (fallbacks[0].Longitude + fallbacks[1].Longitude) / 2,
					Label:     MidpointLabel,
				}, nil
			}
		}

		if idx < len(queries)-1 {
			if err := c.sleep(ctx, c.delay); err != nil {
				return nil, fmt.Errorf("geocoding cascade interrupted: %w", err)
			}
		}
	}

	if len(fallbacks) == 1 {
		c.observe("single_street")
		return &models.Coordinates{
			Latitude:  fallbacks[0].Latitude,
			Longitude: fallbacks[0].Longitude,
			Label:     SingleStreetLabel,
		}, nil
	}

	c.observe("failed")
	return nil, ErrNoResult
}

// lookup issues one query and folds every failure into a nil result.
func (c *Cascade) lookup(ctx context.Context, query string) *models.Coordinates {
	start := time.Now()
	result, err := c.provider.Lookup(ctx, query)
	if c.metrics != nil {
		c.metrics.LookupSeconds.WithLabelValues(c.providerName).Observe(time.Since(start).Seconds())
	}

	switch {
	case err == nil && result != nil:
		c.countLookup("success")
		return result
	case err == nil, errors.Is(err, ErrNoMatch):
		c.countLookup("no_match")
		c.log.DebugContext(ctx, "Geocoder found no match", "query", query)
	default:
		c.countLookup("error")
		c.log.WarnContext(ctx, "Geocoder query failed", "query", query, "error", err)
	}

	return nil
}

func (c *Cascade) countLookup(outcome string) {
	if c.metrics != nil {
		c.metrics.Lookups.WithLabelValues(c.providerName, outcome).Inc()
	}
}

func (c *Cascade) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.CascadeOutcomes.WithLabelValues(outcome).Inc()
	}
}

func outcomeFor(idx int) string {
	if idx == 0 {
		return "direct"
	}

	return "intersection"
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
