package timeexpr

import (
	"strings"
	"time"
)

// Calendar-average durations used by relative clauses.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Year  = 31557600 * time.Second // 365.25 days
	Month = Year / 12              // 30.4375 days
)

// units maps the singular unit names accepted after a quantity.
var units = map[string]time.Duration{
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    Day,
	"week":   Week,
	"month":  Month,
	"year":   Year,
}

// shortcut is a named unit used on its own, e.g. "weekly".
type shortcut struct {
	duration  time.Duration
	recurring bool
}

var shortcuts = map[string]shortcut{
	"tomorrow":    {duration: Day},
	"hourly":      {duration: time.Hour, recurring: true},
	"daily":       {duration: Day, recurring: true},
	"weekly":      {duration: Week, recurring: true},
	"fortnightly": {duration: 2 * Week, recurring: true},
	"monthly":     {duration: 30 * Day, recurring: true},
	"yearly":      {duration: 365 * Day, recurring: true},
}

// lookupUnit resolves a unit word, accepting plurals ("days").
func lookupUnit(word string) (time.Duration, bool) {
	word = strings.ToLower(word)
	if d, ok := units[word]; ok {
		return d, true
	}
	if singular, ok := strings.CutSuffix(word, "s"); ok {
		d, ok := units[singular]
		return d, ok
	}
	return 0, false
}
