package reminder

import (
	"time"
)

// NextFireTime returns the first instant strictly after firedAt on the
// cadence fireAt + k*interval, k >= 1. Missed cycles are skipped rather than
// fired back to back. A non-positive interval returns the zero time.
func NextFireTime(fireAt time.Time, interval time.Duration, firedAt time.Time) time.Time {
	if interval <= 0 {
		return time.Time{}
	}
	next := fireAt.Add(interval)
	if !next.After(firedAt) {
		missed := firedAt.Sub(next)/interval + 1
		next = next.Add(missed * interval)
	}
	return next
}
