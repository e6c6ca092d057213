package calls

import (
	"sync"
	"time"

	"github.com/UnknownOlympus/patrol/internal/address"
	"github.com/UnknownOlympus/patrol/internal/models"
)

// Summary is a consistent copy of the board handed to readers.
type Summary struct {
	UpdatedAt         *time.Time        `json:"updatedAt"`
	TotalCalls        int               `json:"totalCalls"`
	MappedCalls       int               `json:"mappedCalls"`
	UnmappedCalls     int               `json:"unmappedCalls"`
	AttemptsThisCycle int               `json:"geocodeAttemptsThisRun"`
	Error             *string           `json:"error"`
	Calls             []models.CallView `json:"calls"`
}

// Board owns the current list of call views and the counters reported next to it.
// Every method takes the lock only for the in-memory mutation or copy.
type Board struct {
	mu        sync.RWMutex
	calls     []models.CallView
	updatedAt *time.Time
	lastError *string
	attempts  int
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{}
}

// Replace installs a freshly built list after a successful refresh. It clears the last
// error and starts a new attempt cycle.
func (b *Board) Replace(views []models.CallView, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = views
	b.updatedAt = &at
	b.lastError = nil
	b.attempts = 0
}

// RecordError remembers a failed refresh. The existing calls are kept.
func (b *Board) RecordError(err error) {
	msg := err.Error()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastError = &msg
}

// Apply updates, in place, every call whose address has the same cache key as addr.
// Latitude, longitude and label change together under the lock, so readers see either
// the previous or the new coordinates, never a mix.
func (b *Board) Apply(addr string, entry models.CacheEntry) int {
	key := address.CacheKey(addr)

	b.mu.Lock()
	defer b.mu.Unlock()

	updated := 0
	for i := range b.calls {
		if b.calls[i].Address == nil || address.CacheKey(*b.calls[i].Address) != key {
			continue
		}
		applyEntry(&b.calls[i], entry)
		updated++
	}

	return updated
}

// Rejoin fills every unmapped call that lookup can now resolve. A refresh calls it after
// Replace so that a commit landing while the new list was being built is not lost.
func (b *Board) Rejoin(lookup Lookup) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	updated := 0
	for i := range b.calls {
		call := &b.calls[i]
		if call.Mapped() || call.Address == nil {
			continue
		}
		if entry, ok := lookup(*call.Address); ok && entry.Resolved() {
			applyEntry(call, entry)
			updated++
		}
	}

	return updated
}

// Addresses returns the address of every call, in list order, skipping unmappable ones.
func (b *Board) Addresses() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	addrs := make([]string, 0, len(b.calls))
	for _, call := range b.calls {
		if call.Address != nil && *call.Address != "" {
			addrs = append(addrs, *call.Address)
		}
	}

	return addrs
}

// IncAttempts counts one geocoding attempt in the current cycle and returns the new total.
func (b *Board) IncAttempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++
	return b.attempts
}

// Attempts returns the number of geocoding attempts made since the last refresh.
func (b *Board) Attempts() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.attempts
}

// Snapshot returns a deep copy of the board with its counters.
func (b *Board) Snapshot() Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()

	summary := Summary{
		TotalCalls:        len(b.calls),
		AttemptsThisCycle: b.attempts,
		Calls:             make([]models.CallView, len(b.calls)),
	}
	if b.updatedAt != nil {
		at := *b.updatedAt
		summary.UpdatedAt = &at
	}
	if b.lastError != nil {
		msg := *b.lastError
		summary.Error = &msg
	}

	for i, call := range b.calls {
		summary.Calls[i] = copyView(call)
		if call.Mapped() {
			summary.MappedCalls++
		}
	}
	summary.UnmappedCalls = summary.TotalCalls - summary.MappedCalls

	return summary
}

func copyView(view models.CallView) models.CallView {
	if view.Address != nil {
		addr := *view.Address
		view.Address = &addr
	}
	if view.Lat != nil {
		lat := *view.Lat
		view.Lat = &lat
	}
	if view.Lon != nil {
		lon := *view.Lon
		view.Lon = &lon
	}

	return view
}
