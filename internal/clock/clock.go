// Package clock supplies the current date to the ledger. Production code uses
// System; tests and the demo server's test mode use Manual, whose date can be
// pinned with SetDate.
package clock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"loanledger/internal/models"
)

var (
	// ErrInvalidDateFormat is returned by SetDate for anything that is not YYYY-MM-DD.
	ErrInvalidDateFormat = errors.New("invalid date format, use YYYY-MM-DD")

	// ErrNotManual is returned when a caller tries to pin the date of a clock
	// that only follows real time.
	ErrNotManual = errors.New("clock is not in test mode")
)

// Clock is the ledger's only source of "today".
type Clock interface {
	// Today returns the current calendar date.
	Today() models.Date
	// Now returns the timestamp used for created_at/updated_at/paid_at.
	Now() time.Time
}

// Setter is implemented by clocks whose date can be pinned.
type Setter interface {
	SetDate(iso string) error
	Reset()
}

// System follows the wall clock in the given location.
type System struct {
	Location *time.Location
}

func (s System) Now() time.Time {
	now := time.Now()
	if s.Location != nil {
		now = now.In(s.Location)
	}
	return now
}

func (s System) Today() models.Date {
	return models.DateOf(s.Now())
}

// Manual behaves like System until SetDate pins a date; from then on Today
// returns that date and Now returns its midnight UTC, until Reset.
type Manual struct {
	mu     sync.RWMutex
	system System
	pinned *models.Date
}

func NewManual() *Manual {
	return &Manual{}
}

// SetDate pins the clock. There is no fallback on a parse failure: the
// previous value is kept and ErrInvalidDateFormat is returned.
func (m *Manual) SetDate(iso string) error {
	d, err := models.ParseDate(iso)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDateFormat, iso)
	}
	m.mu.Lock()
	m.pinned = &d
	m.mu.Unlock()
	return nil
}

// Advance moves a pinned clock forward by n days. It is a no-op on an unpinned clock.
func (m *Manual) Advance(days int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pinned != nil {
		next := m.pinned.AddDays(days)
		m.pinned = &next
	}
}

func (m *Manual) Reset() {
	m.mu.Lock()
	m.pinned = nil
	m.mu.Unlock()
}

func (m *Manual) Today() models.Date {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pinned != nil {
		return *m.pinned
	}
	return m.system.Today()
}

func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pinned != nil {
		return m.pinned.Time()
	}
	return m.system.Now()
}
