package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for geocoding, the enrichment worker, the cache and the feed.
type Metrics struct {
	Lookups          *prometheus.CounterVec
	LookupSeconds    *prometheus.HistogramVec
	CascadeOutcomes  *prometheus.CounterVec
	CandidatesTotal  prometheus.Counter
	CacheEntries     prometheus.Gauge
	CachePersistErrs prometheus.Counter
	FeedFetches      *prometheus.CounterVec
	Calls            *prometheus.GaugeVec
}

// NewMetrics creates every collector and registers it with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Lookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "patrol_geocoder_lookups_total",
			Help: "Total number of single queries sent to the geocoding provider, by outcome.",
		}, []string{"provider", "outcome"}),
		LookupSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "patrol_geocoder_lookup_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		CascadeOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "patrol_geocode_cascade_outcomes_total",
			Help: "Total number of resolved addresses by the cascade step that produced the result.",
		}, []string{"outcome"}),
		CandidatesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "patrol_enrichment_candidates_total",
			Help: "Total number of addresses picked by the enrichment worker.",
		}),
		CacheEntries: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "patrol_geocode_cache_entries",
			Help: "Current number of entries in the geocode cache.",
		}),
		CachePersistErrs: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "patrol_geocode_cache_persist_errors_total",
			Help: "Total number of failed attempts to persist the geocode cache.",
		}),
		FeedFetches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "patrol_feed_fetches_total",
			Help: "Total number of active calls feed fetches, by status.",
		}, []string{"status"}),
		Calls: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "patrol_active_calls",
			Help: "Current number of active calls, split into mapped and unmapped.",
		}, []string{"state"}),
	}
}
