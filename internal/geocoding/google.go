package geocoding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/patrol/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding services.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewGoogleProvider wraps a Google Maps client.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Lookup geocodes the query with results restricted to the United States.
// An empty result set is reported as ErrNoMatch.
func (gp *GoogleProvider) Lookup(ctx context.Context, query string) (*models.Coordinates, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "query", query)

	req := maps.GeocodingRequest{
		Address:    query,
		Components: map[maps.Component]string{maps.ComponentCountry: "US"},
	}
	geocodeResponse, err := gp.client.Geocode(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode address: %w", err)
	}

	if len(geocodeResponse) == 0 {
		return nil, ErrNoMatch
	}
	top := geocodeResponse[0]

	return &models.Coordinates{
		Latitude:  top.Geometry.Location.Lat,
		Longitude: top.Geometry.Location.Lng,
		Label:     top.FormattedAddress,
	}, nil
}
