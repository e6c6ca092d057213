// Package address derives geocodable street addresses from raw dispatch records.
package address

import (
	"regexp"
	"strings"

	"github.com/UnknownOlympus/patrol/internal/models"
)

// CitySuffix is appended to every address so the geocoder searches within Dallas.
const CitySuffix = ", Dallas, TX"

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	slashRe      = regexp.MustCompile(`\s*/\s*`)
)

// Normalize trims the value and collapses every run of whitespace into a single space.
func Normalize(value string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(value), " ")
}

// CacheKey returns the case and whitespace insensitive identity of an address.
func CacheKey(address string) string {
	return strings.ToLower(Normalize(address))
}

// Build turns a raw record into the address sent to the geocoder, e.g.
// "1400 MAIN ST & ELM ST, Dallas, TX". It returns false when the record has no
// location, in which case the call can never be mapped.
func Build(record models.RawRecord) (string, bool) {
	block := Normalize(record.Block.String())
	location := Normalize(record.Location.String())
	if location == "" {
		return "", false
	}

	location = slashRe.ReplaceAllString(location, " & ")
	if block != "" {
		return block + " " + location + CitySuffix, true
	}

	return location + CitySuffix, true
}

// SplitIntersection extracts the two cross streets from an address whose part before
// the first comma is "A & B". It returns false unless there are exactly two non-empty streets.
func SplitIntersection(address string) (string, string, bool) {
	street, _, _ := strings.Cut(address, ",")
	if !strings.Contains(street, "&") {
		return "", "", false
	}

	pieces := make([]string, 0, 2)
	for _, part := range strings.Split(street, "&") {
		if part = Normalize(part); part != "" {
			pieces = append(pieces, part)
		}
	}

	const crossStreets = 2
	if len(pieces) != crossStreets {
		return "", "", false
	}

	return pieces[0], pieces[1], true
}
