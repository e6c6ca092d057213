package api_test

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/UnknownOlympus/patrol/internal/api"
	"github.com/UnknownOlympus/patrol/internal/calls"
	"github.com/UnknownOlympus/patrol/internal/metrics"
	"github.com/UnknownOlympus/patrol/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTrigger struct {
	calls int
}

func (s *stubTrigger) Trigger() bool {
	s.calls++
	return s.calls == 1
}

func newTestServer(t *testing.T) (*api.Server, *calls.Board, *stubTrigger) {
	t.Helper()

	board := calls.NewBoard()
	addr := "1500 COMMERCE ST, Dallas, TX"
	lat, lon := 32.78, -96.79
	board.Replace([]models.CallView{
		{IncidentNumber: "1", Address: &addr, Lat: &lat, Lon: &lon, GeocodeLabel: "Commerce"},
		{IncidentNumber: "2"},
	}, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.CandidatesTotal.Inc()

	trigger := &stubTrigger{}
	return api.NewServer(slog.Default(), board, trigger, reg), board, trigger
}

func TestServer_Calls(t *testing.T) {
	srv, board, _ := newTestServer(t)
	board.RecordError(errors.New("feed down"))

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/calls", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body struct {
		UpdatedAt     string            `json:"updatedAt"`
		TotalCalls    int               `json:"totalCalls"`
		MappedCalls   int               `json:"mappedCalls"`
		UnmappedCalls int               `json:"unmappedCalls"`
		Attempts      int               `json:"geocodeAttemptsThisRun"`
		Error         *string           `json:"error"`
		Calls         []models.CallView `json:"calls"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))

	assert.Equal(t, "2025-03-01T12:00:00Z", body.UpdatedAt)
	assert.Equal(t, 2, body.TotalCalls)
	assert.Equal(t, 1, body.MappedCalls)
	assert.Equal(t, 1, body.UnmappedCalls)
	require.NotNil(t, body.Error)
	assert.Equal(t, "feed down", *body.Error)
	require.Len(t, body.Calls, 2)
	assert.Equal(t, "Commerce", body.Calls[0].GeocodeLabel)
	assert.Nil(t, body.Calls[1].Lat)
}

func TestServer_Refresh(t *testing.T) {
	srv, _, trigger := newTestServer(t)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodGet} {
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, httptest.NewRequest(method, "/api/refresh", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"refresh_triggered"}`, rr.Body.String())
	}

	assert.Equal(t, 3, trigger.calls)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/health", "/healthz"} {
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.JSONEq(t, `{"status":"ok","uptime_check":true}`, rr.Body.String())
	}

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "patrol_enrichment_candidates_total 1")

	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/calls", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
