package models

// Coordinates represents a geographical point returned by a geocoding provider.
type Coordinates struct {
	Latitude  float64 // Latitude of the geographical point.
	Longitude float64 // Longitude of the geographical point.
	Label     string  // Label is the display name the provider attached to the point.
}
