package geocoding

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/UnknownOlympus/patrol/internal/metrics"
	"github.com/UnknownOlympus/patrol/internal/models"
	"github.com/UnknownOlympus/patrol/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const intersection = "100 MAIN ST & ELM ST, Dallas, TX"

// newTestCascade returns a cascade whose pauses are recorded instead of slept.
func newTestCascade(t *testing.T, provider Provider) (*Cascade, *[]time.Duration, *metrics.Metrics) {
	t.Helper()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	c := NewCascade(slog.Default(), provider, "nominatim", 1100*time.Millisecond, m)
	var pauses []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	return c, &pauses, m
}

func TestCascade_Queries(t *testing.T) {
	c := NewCascade(slog.Default(), nil, "nominatim", 0, nil)

	t.Run("plain address", func(t *testing.T) {
		assert.Equal(t, []string{"1400 MAIN ST, Dallas, TX"}, c.Queries("1400 MAIN ST, Dallas, TX"))
	})

	t.Run("intersection", func(t *testing.T) {
		assert.Equal(t, []string{
			intersection,
			"100 MAIN ST and ELM ST, Dallas, TX",
			"100 MAIN ST, Dallas, TX",
			"ELM ST, Dallas, TX",
		}, c.Queries(intersection))
	})

	t.Run("duplicates are dropped", func(t *testing.T) {
		assert.Equal(t, []string{
			"ELM ST & ELM ST, Dallas, TX",
			"ELM ST and ELM ST, Dallas, TX",
			"ELM ST, Dallas, TX",
		}, c.Queries("ELM ST & ELM ST, Dallas, TX"))
	})
}

func TestCascade_Resolve(t *testing.T) {
	ctx := t.Context()

	t.Run("direct hit is returned unmodified", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		c, pauses, m := newTestCascade(t, provider)
		direct := &models.Coordinates{Latitude: 33.0, Longitude: -97.0, Label: "Main Street, Dallas"}

		provider.On("Lookup", ctx, intersection).Return(direct, nil).Once()

		got, err := c.Resolve(ctx, intersection)

		require.NoError(t, err)
		assert.Equal(t, direct, got)
		assert.Empty(t, *pauses)
		assert.InDelta(t, 1, testutil.ToFloat64(m.CascadeOutcomes.WithLabelValues("direct")), 0)
	})

	t.Run("intersection phrase hit short-circuits", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		c, pauses, _ := newTestCascade(t, provider)
		phrase := &models.Coordinates{Latitude: 32.5, Longitude: -96.5, Label: "Main & Elm"}

		provider.On("Lookup", ctx, intersection).Return(nil, ErrNoMatch).Once()
		provider.On("Lookup", ctx, "100 MAIN ST and ELM ST, Dallas, TX").Return(phrase, nil).Once()

		got, err := c.Resolve(ctx, intersection)

		require.NoError(t, err)
		assert.Equal(t, phrase, got)
		assert.Equal(t, []time.Duration{1100 * time.Millisecond}, *pauses)
	})

	t.Run("two street fallbacks are averaged", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		c, pauses, m := newTestCascade(t, provider)

		provider.On("Lookup", ctx, intersection).Return(nil, ErrNoMatch).Once()
		provider.On("Lookup", ctx, "100 MAIN ST and ELM ST, Dallas, TX").Return(nil, assert.AnError).Once()
		provider.On("Lookup", ctx, "100 MAIN ST, Dallas, TX").
			Return(&models.Coordinates{Latitude: 32.0, Longitude: -96.0, Label: "Main"}, nil).Once()
		provider.On("Lookup", ctx, "ELM ST, Dallas, TX").
			Return(&models.Coordinates{Latitude: 32.2, Longitude: -96.2, Label: "Elm"}, nil).Once()

		got, err := c.Resolve(ctx, intersection)

		require.NoError(t, err)
		assert.InDelta(t, 32.1, got.Latitude, 1e-9)
		assert.InDelta(t, -96.1, got.Longitude, 1e-9)
		assert.Equal(t, MidpointLabel, got.Label)
		assert.Len(t, *pauses, 3, "no pause after the last query")
		assert.InDelta(t, 1, testutil.ToFloat64(m.Lookups.WithLabelValues("nominatim", "error")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(m.Lookups.WithLabelValues("nominatim", "no_match")), 0)
		assert.InDelta(t, 2, testutil.ToFloat64(m.Lookups.WithLabelValues("nominatim", "success")), 0)
	})

	t.Run("single street fallback", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		c, _, _ := newTestCascade(t, provider)

		provider.On("Lookup", ctx, intersection).Return(nil, ErrNoMatch).Once()
		provider.On("Lookup", ctx, "100 MAIN ST and ELM ST, Dallas, TX").Return(nil, ErrNoMatch).Once()
		provider.On("Lookup", ctx, "100 MAIN ST, Dallas, TX").Return(nil, nil).Once()
		provider.On("Lookup", ctx, "ELM ST, Dallas, TX").
			Return(&models.Coordinates{Latitude: 32.2, Longitude: -96.2, Label: "Elm"}, nil).Once()

		got, err := c.Resolve(ctx, intersection)

		require.NoError(t, err)
		assert.Equal(t, &models.Coordinates{Latitude: 32.2, Longitude: -96.2, Label: SingleStreetLabel}, got)
	})

	t.Run("nothing matches", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		c, pauses, m := newTestCascade(t, provider)

		provider.On("Lookup", ctx, mock.Anything).Return(nil, ErrNoMatch).Times(4)

		got, err := c.Resolve(ctx, intersection)

		require.ErrorIs(t, err, ErrNoResult)
		assert.Nil(t, got)
		assert.Len(t, *pauses, 3)
		assert.InDelta(t, 1, testutil.ToFloat64(m.CascadeOutcomes.WithLabelValues("failed")), 0)
	})

	t.Run("pause interrupted", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		c, _, _ := newTestCascade(t, provider)
		c.sleep = func(context.Context, time.Duration) error { return context.DeadlineExceeded }

		provider.On("Lookup", ctx, intersection).Return(nil, ErrNoMatch).Once()

		got, err := c.Resolve(ctx, intersection)

		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Nil(t, got)
	})

	t.Run("cancelled after a lookup", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		c := NewCascade(slog.Default(), provider, "nominatim", time.Hour, nil)
		cctx, cancel := context.WithCancel(ctx)

		provider.On("Lookup", cctx, intersection).Run(func(mock.Arguments) { cancel() }).Return(nil, ErrNoMatch).Once()

		got, err := c.Resolve(cctx, intersection)

		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, got)
	})

	t.Run("cancelled during the only query", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		c, pauses, m := newTestCascade(t, provider)
		cctx, cancel := context.WithCancel(ctx)
		plain := "1500 COMMERCE ST, Dallas, TX"

		provider.On("Lookup", cctx, plain).Run(func(mock.Arguments) { cancel() }).Return(nil, context.Canceled).Once()

		got, err := c.Resolve(cctx, plain)

		require.ErrorIs(t, err, context.Canceled)
		require.NotErrorIs(t, err, ErrNoResult)
		assert.Nil(t, got)
		assert.Empty(t, *pauses)
		assert.InDelta(t, 0, testutil.ToFloat64(m.CascadeOutcomes.WithLabelValues("failed")), 0)
	})

	t.Run("cancelled during the last fallback query", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		c, _, _ := newTestCascade(t, provider)
		cctx, cancel := context.WithCancel(ctx)

		provider.On("Lookup", cctx, intersection).Return(nil, ErrNoMatch).Once()
		provider.On("Lookup", cctx, "100 MAIN ST and ELM ST, Dallas, TX").Return(nil, ErrNoMatch).Once()
		provider.On("Lookup", cctx, "100 MAIN ST, Dallas, TX").
			Return(&models.Coordinates{Latitude: 32.0, Longitude: -96.0}, nil).Once()
		provider.On("Lookup", cctx, "ELM ST, Dallas, TX").
			Run(func(mock.Arguments) { cancel() }).Return(nil, context.Canceled).Once()

		got, err := c.Resolve(cctx, intersection)

		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, got, "a lone fallback is not returned once the cascade was interrupted")
	})
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(t.Context(), 0))
	require.NoError(t, Sleep(t.Context(), time.Millisecond))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
