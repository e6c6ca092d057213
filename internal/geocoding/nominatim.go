package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/UnknownOlympus/patrol/internal/models"
	"golang.org/x/time/rate"
)

// NominatimBaseURL is the public OpenStreetMap Nominatim search endpoint.
const NominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// DefaultUserAgent identifies the service to the geocoder, as the Nominatim usage policy requires.
const DefaultUserAgent = "DallasPDActiveCalls/2.0 (contact: local-app)"

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// This is a free geocoding service with usage limits (1 request/second for fair use),
// which the limiter enforces across every caller sharing the provider.
type NominatimProvider struct {
	client    HTTPClient    // HTTP client for making requests
	baseURL   string        // Base URL for the Nominatim API
	userAgent string        // userAgent is required by Nominatim usage policy
	limiter   *rate.Limiter // Minimum spacing between requests
	log       *slog.Logger  // Logger for logging operations
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// nominatimResponse represents one element of the JSON response from Nominatim API.
type nominatimResponse struct {
	Lat         string `json:"lat"`          // Latitude as string
	Lon         string `json:"lon"`          // Longitude as string
	DisplayName string `json:"display_name"` // Human readable label of the match
}

// NewNominatimProvider creates a new Nominatim geocoding provider using the public endpoint.
// Consecutive requests are spaced at least minInterval apart.
func NewNominatimProvider(userAgent string, minInterval time.Duration, log *slog.Logger) *NominatimProvider {
	const timeout = 10
	return NewNominatimProviderWithClient(
		&http.Client{Timeout: timeout * time.Second},
		userAgent,
		newIntervalLimiter(minInterval),
		log,
	)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client and limiter.
// Useful for testing with mocked HTTP clients.
func NewNominatimProviderWithClient(
	client HTTPClient,
	userAgent string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *NominatimProvider {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	return &NominatimProvider{
		client:    client,
		baseURL:   NominatimBaseURL,
		userAgent: userAgent,
		limiter:   limiter,
		log:       log,
	}
}

// Lookup performs one search restricted to the United States and returns the first result.
func (np *NominatimProvider) Lookup(ctx context.Context, query string) (*models.Coordinates, error) {
	if err := np.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait aborted: %w", err)
	}

	reqURL, err := url.Parse(np.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	params := reqURL.Query()
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	params.Set("countrycodes", "us")
	reqURL.RawQuery = params.Encode()

	np.log.DebugContext(ctx, "Nominatim request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set required headers per Nominatim usage policy
	req.Header.Set("User-Agent", np.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US")

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		np.log.WarnContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var results []nominatimResponse
	if err = json.Unmarshal(body, &results); err != nil {
		np.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrNoMatch
	}

	lat, okLat := parseCoordinate(results[0].Lat)
	lon, okLon := parseCoordinate(results[0].Lon)
	if !okLat || !okLon {
		return nil, fmt.Errorf("%w: invalid coordinates %q, %q", ErrNoMatch, results[0].Lat, results[0].Lon)
	}

	np.log.DebugContext(ctx, "Nominatim found result", "query", query, "lat", lat, "lon", lon)

	return &models.Coordinates{
		Latitude:  lat,
		Longitude: lon,
		Label:     results[0].DisplayName,
	}, nil
}

func parseCoordinate(raw string) (float64, bool) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}

	return value, true
}

func newIntervalLimiter(minInterval time.Duration) *rate.Limiter {
	if minInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	return rate.NewLimiter(rate.Every(minInterval), 1)
}
