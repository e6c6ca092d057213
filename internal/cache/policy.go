package cache

import (
	"time"

	"github.com/UnknownOlympus/patrol/internal/models"
)

// ShouldAttempt decides whether an address with the given cache entry may be sent to the
// geocoder at now. A nil entry means the address was never tried.
//
// Resolved entries are never retried. Failed entries are retried once more than interval
// has passed since the last attempt; if the attempt time is missing or does not parse the
// address is eligible right away.
func ShouldAttempt(entry *models.CacheEntry, now time.Time, interval time.Duration) bool {
	if entry == nil {
		return true
	}
	if entry.Resolved() {
		return false
	}

	last, ok := lastAttempt(entry)
	if !ok {
		return true
	}

	return now.Sub(last) > interval
}

func lastAttempt(entry *models.CacheEntry) (time.Time, bool) {
	raw := entry.LastAttempt
	if raw == "" {
		raw = entry.UpdatedAt
	}
	if raw == "" {
		return time.Time{}, false
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}

	return parsed, true
}

// FormatTime renders t the way entries store their timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
