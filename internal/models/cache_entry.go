package models

// CacheEntry is the stored outcome of the latest geocoding attempt for one address.
// A resolved entry has both coordinates set; a failed entry has neither but still
// records when the attempt happened. Timestamps are RFC 3339 strings so that a
// hand-edited or legacy value that does not parse can still be loaded.
type CacheEntry struct {
	Lat         *float64 `json:"lat"`         // Lat is nil for a failed attempt.
	Lon         *float64 `json:"lon"`         // Lon is nil for a failed attempt.
	Label       string   `json:"label"`       // Label is the provider display name or an approximation marker.
	Provider    string   `json:"provider"`    // Provider names the geocoder that produced the entry.
	LastAttempt string   `json:"lastAttempt"` // LastAttempt is when the address was last sent to the geocoder.
	UpdatedAt   string   `json:"updatedAt"`   // UpdatedAt is when the entry was last written.
}

// Resolved reports whether the entry carries usable coordinates.
func (e CacheEntry) Resolved() bool {
	return e.Lat != nil && e.Lon != nil
}
