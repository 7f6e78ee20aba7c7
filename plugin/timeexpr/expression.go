package timeexpr

import (
	"math"
	"time"

	ierrors "github.com/hrygo/strawbean/internal/errors"
	"github.com/hrygo/strawbean/server/timezone"
)

const (
	// PastTolerance is how far in the past an absolute instant may be before
	// it is advanced by whole days.
	PastTolerance = 60 * time.Second
	// MaxAdvanceDays bounds the number of day steps taken to bring an
	// absolute instant into the future.
	MaxAdvanceDays = 366
)

// Date is a calendar date. Year zero means "the next occurrence".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Expression is the parsed temporal content of a directive.
type Expression struct {
	// Relative is the sum of all relative clauses and shortcuts.
	Relative time.Duration
	// Repeat is the recurrence interval, zero for one-shot reminders.
	Repeat time.Duration
	// Date and Clock hold the absolute clause, if any.
	Date  *Date
	Clock *Clock
	// Remainder is the non-temporal text, whitespace-normalized.
	Remainder string

	shortcut bool
}

// HasClause reports whether any temporal clause was recognized.
func (e *Expression) HasClause() bool {
	return e.Relative != 0 || e.IsAbsolute() || e.shortcut
}

// IsAbsolute reports whether the expression carries a date or time of day.
func (e *Expression) IsAbsolute() bool {
	return e.Date != nil || e.Clock != nil
}

// IsRecurring reports whether the expression repeats.
func (e *Expression) IsRecurring() bool {
	return e.Repeat > 0
}

func (e *Expression) addRelative(d time.Duration) error {
	if e.Relative > math.MaxInt64-d {
		return ierrors.ParseError("relative time is too far away")
	}
	e.Relative += d
	return nil
}

// Resolve returns the UTC fire instant of the expression as observed at now in
// tz. The absolute clause is resolved first, the relative duration is added to
// it, and the sum is normalized across daylight saving transitions.
func (e *Expression) Resolve(now time.Time, tz *time.Location) (time.Time, error) {
	if tz == nil {
		tz = time.UTC
	}
	base := now.In(tz)
	if e.IsAbsolute() {
		abs, err := e.resolveAbsolute(base, tz)
		if err != nil {
			return time.Time{}, err
		}
		base = abs
	}
	target := base.Add(e.Relative)
	return timezone.NormalizeDST(now, target, tz).UTC(), nil
}

// resolveAbsolute builds the wall-clock instant of the absolute clause. A
// missing time of day takes the observer's current time of day; a missing date
// is today. An instant more than PastTolerance in the past is advanced by whole
// days, preserving the time of day.
func (e *Expression) resolveAbsolute(now time.Time, tz *time.Location) (time.Time, error) {
	year, month, day := now.Date()
	hour, minute, second := now.Clock()

	yearless := false
	if e.Date != nil {
		month, day = e.Date.Month, e.Date.Day
		if e.Date.Year != 0 {
			year = e.Date.Year
		} else {
			yearless = true
		}
	}
	if e.Clock != nil {
		hour, minute, second = e.Clock.Hour, e.Clock.Minute, 0
	}

	wall := time.Date(year, month, day, hour, minute, second, 0, tz)
	if wall.Month() != month || wall.Day() != day {
		return time.Time{}, ierrors.ParseError("%d/%d/%d is not a calendar date", day, int(month), year)
	}
	if yearless && wall.Before(timezone.StartOfDay(now, tz)) {
		wall = time.Date(year+1, month, day, hour, minute, second, 0, tz)
	}

	cutoff := now.Add(-PastTolerance)
	for steps := 0; wall.Before(cutoff); steps++ {
		if steps >= MaxAdvanceDays {
			return time.Time{}, ierrors.PastInstantUnresolvable("date is too far in the past")
		}
		wall = wall.AddDate(0, 0, 1)
	}
	return wall, nil
}
