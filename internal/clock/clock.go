// Package clock provides feed.Clock implementations.
package clock

import "time"

// System reads the wall clock and reports UTC.
type System struct{}

// Now returns the current time in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. Useful for deterministic renders.
type Fixed time.Time

// Now returns the fixed instant in UTC.
func (f Fixed) Now() time.Time {
	return time.Time(f).UTC()
}
