// Package schedule holds the pure time arithmetic behind the events
// calendar: interval overlap, duration-preserving shifts, registration
// window derivation, and recurrence expansion.
package schedule

import "time"

// Overlaps reports whether [startA, endA) and [startB, endB) intersect.
// Intervals are half-open, so sharing a single boundary instant does not
// count as overlap.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && endA.After(startB)
}

// ShiftPreservingDuration translates an interval so its start becomes
// newStart while keeping the original duration exactly.
func ShiftPreservingDuration(originalStart, originalEnd, newStart time.Time) (time.Time, time.Time) {
	return newStart, newStart.Add(originalEnd.Sub(originalStart))
}

// DeriveRegistrationWindow computes when registration opens and closes for
// an event, both offsets counted in days before the event start. When the
// naive subtraction would produce an empty or inverted window, closes is
// forced to thirty minutes after opens so the window is never degenerate.
func DeriveRegistrationWindow(eventStart time.Time, opensOffsetDays, closesOffsetDays int) (time.Time, time.Time) {
	opensAt := eventStart.AddDate(0, 0, -opensOffsetDays)
	closesAt := eventStart.AddDate(0, 0, -closesOffsetDays)
	if !opensAt.Before(closesAt) {
		closesAt = opensAt.Add(30 * time.Minute)
	}
	return opensAt, closesAt
}
