package geocoding

import (
	"context"
	"errors"

	"github.com/UnknownOlympus/patrol/internal/models"
)

// Provider is an interface that defines a single lookup against a geocoding service.
// Lookup takes a context and a free-text query and returns the top match.
//
// A query the service understood but could not place is reported as ErrNoMatch; any
// other error means the call itself failed (transport, status, decoding).
type Provider interface {
	Lookup(ctx context.Context, query string) (*models.Coordinates, error)
}

// ErrNoMatch is returned by providers when the service answered without a usable result.
var ErrNoMatch = errors.New("geocoder returned no usable match")
