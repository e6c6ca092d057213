package geocoding

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"googlemaps.github.io/maps"
)

// ProviderType represents the type of geocoding provider.
type ProviderType string

const (
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeNominatim represents OpenStreetMap Nominatim geocoding provider.
	ProviderTypeNominatim ProviderType = "nominatim"
)

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	Type        ProviderType  // Type of provider to create
	APIKey      string        // API key (used by Google provider)
	UserAgent   string        // Client identifier sent with every request (used by Nominatim provider)
	MinInterval time.Duration // Minimum spacing between two requests to the provider
	Logger      *slog.Logger  // Logger for the provider
}

// NewProvider creates a geocoding provider based on the provided configuration.
//
// Supported provider types:
// - "nominatim": OpenStreetMap Nominatim API (free, no API key required)
// - "google": Google Maps Geocoding API (requires API key)
//
// Returns an error if the provider type is unsupported or if provider creation fails.
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderTypeNominatim:
		return newNominatimProvider(config)
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// newGoogleProvider creates a Google Maps geocoding provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}

	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}

	// maps expects requests per second; anything slower than one per second is left to the worker delays.
	if config.MinInterval > 0 && config.MinInterval < time.Second {
		clientOpts = append(clientOpts, maps.WithRateLimit(int(time.Second/config.MinInterval)))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleProvider(client, config.Logger), nil
}

// newNominatimProvider creates a Nominatim geocoding provider.
func newNominatimProvider(config ProviderConfig) (Provider, error) {
	return NewNominatimProvider(config.UserAgent, config.MinInterval, config.Logger), nil
}
