// Package timezone provides timezone utilities for strawbean.
//
// Reminder instants are stored as absolute UTC milliseconds. A zone is only
// consulted when a directive is parsed (to resolve wall-clock fields and to
// normalize across daylight saving transitions) and when an instant is rendered
// back to a user.
package timezone

import (
	"fmt"
	"time"
)

// UTC is the coordinated universal time timezone.
var UTC = time.UTC

// ParseTimezone parses an IANA timezone identifier (e.g., "Australia/Sydney").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// MustParseTimezone parses a timezone or panics if invalid.
// Use this for constants that are known to be valid at compile time.
func MustParseTimezone(tz string) *time.Location {
	loc, err := ParseTimezone(tz)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	if tz == "" || tz == "UTC" {
		return true
	}

	_, err := time.LoadLocation(tz)
	return err == nil
}

// FromUnixMilli converts a stored millisecond instant to a time in tz.
func FromUnixMilli(ms int64, tz *time.Location) time.Time {
	if tz == nil {
		tz = UTC
	}
	return time.UnixMilli(ms).In(tz)
}

// StartOfDay returns the start of the day (00:00:00) in the given timezone.
func StartOfDay(t time.Time, tz *time.Location) time.Time {
	if tz == nil {
		tz = UTC
	}
	local := t.In(tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)
}

// Common timezone identifiers.
const (
	TimezoneUTC             = "UTC"
	TimezoneAustraliaSydney = "Australia/Sydney"
	TimezoneAmericaNewYork  = "America/New_York"
	TimezoneEuropeLondon    = "Europe/London"
	TimezoneAsiaShanghai    = "Asia/Shanghai"
)
