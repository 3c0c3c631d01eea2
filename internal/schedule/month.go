package schedule

import (
	"fmt"
	"time"
)

// MonthRef identifies one calendar month.
type MonthRef struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// ID renders the roster partition key, e.g. "2025-06".
func (m MonthRef) ID() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Days returns the number of calendar days in the month.
func (m MonthRef) Days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// First returns midnight UTC on day 1 of the month.
func (m MonthRef) First() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Add steps the reference by n months.
func (m MonthRef) Add(n int) MonthRef {
	t := m.First().AddDate(0, n, 0)
	return MonthRef{Year: t.Year(), Month: t.Month()}
}

// Navigator tracks the selected month within a bounds list generated at
// construction: one month back through eighteen months forward,
// anchored to the given time. The selection starts on the anchor month.
type Navigator struct {
	bounds   []MonthRef
	selected int
}

const (
	monthsBack    = 1
	monthsForward = 18
)

// NewNavigator builds the bounds list anchored at now.
func NewNavigator(now time.Time) *Navigator {
	anchor := MonthRef{Year: now.Year(), Month: now.Month()}

	bounds := make([]MonthRef, 0, monthsBack+monthsForward+1)
	for i := -monthsBack; i <= monthsForward; i++ {
		bounds = append(bounds, anchor.Add(i))
	}

	return &Navigator{bounds: bounds, selected: monthsBack}
}

// Selected returns the currently selected month.
func (n *Navigator) Selected() MonthRef {
	return n.bounds[n.selected]
}

// Bounds returns the generated month range.
func (n *Navigator) Bounds() []MonthRef {
	out := make([]MonthRef, len(n.bounds))
	copy(out, n.bounds)
	return out
}

// Move shifts the selection by direction (±1). Out-of-bounds moves are
// silently ignored: no wraparound, no error. Returns true when the
// selection changed, which is the caller's cue to reload.
func (n *Navigator) Move(direction int) bool {
	next := n.selected + direction
	if next < 0 || next >= len(n.bounds) {
		return false
	}
	n.selected = next
	return true
}

// Select jumps directly to a month inside the bounds. Months outside
// the generated range are rejected.
func (n *Navigator) Select(m MonthRef) bool {
	for i, b := range n.bounds {
		if b == m {
			n.selected = i
			return true
		}
	}
	return false
}
