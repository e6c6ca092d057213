// Package calls holds the externally visible list of active calls and keeps it joined
// with the geocode cache.
package calls

import (
	"github.com/UnknownOlympus/patrol/internal/address"
	"github.com/UnknownOlympus/patrol/internal/models"
)

// Lookup returns the cache entry for an address.
type Lookup func(addr string) (models.CacheEntry, bool)

// NewView joins a raw record with the current cache state. Only resolved entries
// contribute coordinates; the view of a failed or unknown address is unmapped.
func NewView(record models.RawRecord, lookup Lookup) models.CallView {
	view := models.CallView{
		IncidentNumber: address.Normalize(record.IncidentNumber.String()),
		Division:       address.Normalize(record.Division.String()),
		NatureOfCall:   address.Normalize(record.NatureOfCall.String()),
		Priority:       address.Normalize(record.Priority.String()),
		Date:           address.Normalize(record.Date.String()),
		Time:           address.Normalize(record.Time.String()),
		UnitNumber:     address.Normalize(record.UnitNumber.String()),
		Block:          address.Normalize(record.Block.String()),
		Location:       address.Normalize(record.Location.String()),
		Beat:           address.Normalize(record.Beat.String()),
		ReportingArea:  address.Normalize(record.ReportingArea.String()),
		Status:         address.Normalize(record.Status.String()),
	}

	addr, ok := address.Build(record)
	if !ok {
		return view
	}
	view.Address = &addr

	if entry, found := lookup(addr); found {
		applyEntry(&view, entry)
	}

	return view
}

// applyEntry copies the coordinates of a resolved entry onto the view. Both coordinates
// are written together or not at all.
func applyEntry(view *models.CallView, entry models.CacheEntry) {
	if !entry.Resolved() {
		return
	}

	lat, lon := *entry.Lat, *entry.Lon
	view.Lat = &lat
	view.Lon = &lon
	view.GeocodeLabel = entry.Label
}
