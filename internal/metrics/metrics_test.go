package metrics_test

import (
	"testing"

	"github.com/UnknownOlympus/patrol/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	m.Lookups.WithLabelValues("nominatim", "success").Inc()
	m.CascadeOutcomes.WithLabelValues("midpoint").Add(2)
	m.CacheEntries.Set(3)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Lookups.WithLabelValues("nominatim", "success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.CascadeOutcomes.WithLabelValues("midpoint")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.CacheEntries), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.Panics(t, func() { metrics.NewMetrics(reg) }, "registering twice must fail")
}
