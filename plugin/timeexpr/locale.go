package timeexpr

import (
	"strings"
	"time"

	"golang.org/x/text/language"

	ierrors "github.com/hrygo/strawbean/internal/errors"
)

// Regions that write short dates month first.
var monthFirstRegions = map[string]bool{
	"US": true,
	"PH": true,
	"FM": true,
	"MH": true,
	"PW": true,
}

// Regions whose short time style uses a 12-hour clock.
var hour12Regions = map[string]bool{
	"US": true,
	"AU": true,
	"NZ": true,
	"CA": true,
	"IN": true,
	"PH": true,
	"PK": true,
	"EG": true,
	"MY": true,
}

// Locale controls the field order of short dates and how instants are
// rendered back to users.
type Locale struct {
	Tag        language.Tag
	MonthFirst bool
	Hour12     bool
}

// DefaultLocale is en-AU: day-first dates with a 12-hour clock.
var DefaultLocale = Locale{Tag: language.MustParse("en-AU"), Hour12: true}

// ParseLocale parses a BCP 47 tag such as "en-AU" or "en-US".
func ParseLocale(tag string) (Locale, error) {
	if strings.TrimSpace(tag) == "" {
		return DefaultLocale, nil
	}
	t, err := language.Parse(tag)
	if err != nil {
		return DefaultLocale, ierrors.InvalidArgument("invalid locale %q: %v", tag, err)
	}
	region, _ := t.Region()
	code := region.String()
	return Locale{
		Tag:        t,
		MonthFirst: monthFirstRegions[code],
		Hour12:     hour12Regions[code],
	}, nil
}

// DateLayout is the short date layout, e.g. "2/1/06" for day-first locales.
func (l Locale) DateLayout() string {
	if l.MonthFirst {
		return "1/2/06"
	}
	return "2/1/06"
}

// TimeLayout is the short time layout.
func (l Locale) TimeLayout() string {
	switch {
	case !l.Hour12:
		return "15:04"
	case l.MonthFirst:
		return "3:04 PM"
	default:
		return "3:04 pm"
	}
}

// Format renders t in tz as "<short date> <short time>". The output parses
// back through an "at" clause with the same locale.
func (l Locale) Format(t time.Time, tz *time.Location) string {
	if tz == nil {
		tz = time.UTC
	}
	return t.In(tz).Format(l.DateLayout() + " " + l.TimeLayout())
}

func (l Locale) String() string {
	return l.Tag.String()
}
