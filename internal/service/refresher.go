package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/patrol/internal/cache"
	"github.com/UnknownOlympus/patrol/internal/calls"
	"github.com/UnknownOlympus/patrol/internal/metrics"
	"github.com/UnknownOlympus/patrol/internal/models"
)

// Fetcher yields the current raw records of the active calls feed.
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.RawRecord, error)
}

// Refresher periodically rebuilds the board from the raw feed joined with the cache.
// A refresh can also be requested at any time with Trigger.
type Refresher struct {
	log      *slog.Logger
	fetcher  Fetcher
	cache    *cache.Cache
	board    *calls.Board
	metrics  *metrics.Metrics
	interval time.Duration
	trigger  chan struct{}
	now      func() time.Time
}

// NewRefresher creates a new refresh loop.
func NewRefresher(
	log *slog.Logger,
	fetcher Fetcher,
	geoCache *cache.Cache,
	board *calls.Board,
	m *metrics.Metrics,
	interval time.Duration,
) *Refresher {
	return &Refresher{
		log:      log,
		fetcher:  fetcher,
		cache:    geoCache,
		board:    board,
		metrics:  m,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Run refreshes once right away, then on every tick and every trigger, until the
// context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.InfoContext(ctx, "Refresh loop started...", "interval", r.interval)
	r.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.InfoContext(ctx, "Refresh loop stopped.")
			return
		case <-ticker.C:
			r.refresh(ctx)
		case <-r.trigger:
			r.log.InfoContext(ctx, "Manual refresh requested")
			r.refresh(ctx)
			ticker.Reset(r.interval)
		}
	}
}

// Trigger asks the loop for an immediate refresh. It never blocks; it returns false
// when a request is already pending.
func (r *Refresher) Trigger() bool {
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RefreshOnce fetches the feed and installs the rebuilt views. On failure the error is
// recorded on the board and the current calls are kept.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	records, err := r.fetcher.Fetch(ctx)
	if err != nil {
		r.board.RecordError(err)
		r.countFetch("failure")
		return fmt.Errorf("failed to refresh active calls: %w", err)
	}

	views := make([]models.CallView, 0, len(records))
	for _, record := range records {
		views = append(views, calls.NewView(record, r.cache.Get))
	}

	r.board.Replace(views, r.now().UTC())
	if late := r.board.Rejoin(r.cache.Get); late > 0 {
		r.log.DebugContext(ctx, "Applied coordinates geocoded during refresh", "calls_updated", late)
	}
	r.countFetch("success")
	updateCallGauges(r.metrics, r.board)

	return nil
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.RefreshOnce(ctx); err != nil {
		r.log.ErrorContext(ctx, "Data fetch failed", "error", err)
		return
	}

	r.log.DebugContext(ctx, "Active calls refreshed")
}

func (r *Refresher) countFetch(status string) {
	if r.metrics != nil {
		r.metrics.FeedFetches.WithLabelValues(status).Inc()
	}
}
