// Package timeexpr parses the temporal clauses of reminder directives.
//
// A directive such as "test at 19/10/26 3:00 pm in 2 hours" is split into an
// Expression: an optional absolute date and time of day, a relative duration,
// an optional repeat interval, and the words that were not part of any clause.
// Parsing is pure. Resolve turns an Expression into an instant for a given
// observer clock and zone.
package timeexpr

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	ierrors "github.com/hrygo/strawbean/internal/errors"
)

// Default connective words.
const (
	DefaultRelativeWord = "in"
	DefaultAbsoluteWord = "at"
)

var (
	// 19/10/26, 19/10/2026, 19-10, 2026-10-19
	datePattern = regexp.MustCompile(`^(\d{1,4})[/.\-](\d{1,2})(?:[/.\-](\d{1,4}))?$`)
	// 3:00, 15:00, 3:00pm, 3pm
	clockPattern    = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(am|pm|a\.m\.|p\.m\.)?$`)
	meridiemPattern = regexp.MustCompile(`^(am|pm|a\.m\.|p\.m\.)$`)
)

// Option configures a Parser.
type Option func(*Parser)

// WithConnectives overrides the words introducing relative and absolute clauses.
func WithConnectives(relative, absolute string) Option {
	return func(p *Parser) {
		if relative != "" {
			p.relativeWord = strings.ToLower(relative)
		}
		if absolute != "" {
			p.absoluteWord = strings.ToLower(absolute)
		}
	}
}

// Parser parses directive text into Expressions.
type Parser struct {
	locale       Locale
	relativeWord string
	absoluteWord string
}

// NewParser creates a parser reading short dates in the given locale.
func NewParser(locale Locale, opts ...Option) *Parser {
	p := &Parser{
		locale:       locale,
		relativeWord: DefaultRelativeWord,
		absoluteWord: DefaultAbsoluteWord,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Locale returns the parser's locale.
func (p *Parser) Locale() Locale {
	return p.locale
}

// Parse extracts every temporal clause from text. It fails with a PARSE_ERROR
// when no clause is present or a clause is malformed.
func (p *Parser) Parse(text string) (*Expression, error) {
	expr, err := p.parse(text)
	if err != nil {
		return nil, err
	}
	if !expr.HasClause() {
		return nil, ierrors.ParseError("no time expression in %q", strings.TrimSpace(text))
	}
	return expr, nil
}

// ParseOptional is like Parse but accepts text without any clause.
func (p *Parser) ParseOptional(text string) (*Expression, error) {
	return p.parse(text)
}

func (p *Parser) parse(text string) (*Expression, error) {
	tokens := strings.Fields(text)
	expr := &Expression{}
	var rest []string

	for i := 0; i < len(tokens); {
		word := strings.ToLower(tokens[i])

		switch {
		case word == p.relativeWord:
			j := p.skipFillers(tokens, i, p.relativeWord)
			if j >= len(tokens) {
				rest = append(rest, tokens[i:]...)
				i = len(tokens)
				continue
			}
			qty, err := strconv.Atoi(tokens[j])
			if err != nil {
				// "check in on bob" is text, not a clause.
				rest = append(rest, tokens[i])
				i++
				continue
			}
			if j+1 >= len(tokens) {
				return nil, ierrors.ParseError("missing unit after %q", tokens[j])
			}
			d, err := scale(qty, tokens[j+1])
			if err != nil {
				return nil, err
			}
			if err := expr.addRelative(d); err != nil {
				return nil, err
			}
			i = j + 2

		case word == p.absoluteWord:
			j := p.skipFillers(tokens, i, p.absoluteWord)
			consumed, err := p.parseAbsolute(tokens[j:], expr)
			if err != nil {
				return nil, err
			}
			if consumed == 0 {
				rest = append(rest, tokens[i])
				i++
				continue
			}
			i = j + consumed

		default:
			sc, ok := shortcuts[word]
			if !ok {
				rest = append(rest, tokens[i])
				i++
				continue
			}
			if sc.recurring {
				if expr.Repeat != 0 && expr.Repeat != sc.duration {
					return nil, ierrors.ParseError("conflicting repeat interval %q", tokens[i])
				}
				expr.Repeat = sc.duration
			}
			if err := expr.addRelative(sc.duration); err != nil {
				return nil, err
			}
			expr.shortcut = true
			i++
		}
	}

	expr.Remainder = strings.Join(rest, " ")
	return expr, nil
}

// skipFillers returns the index of the first token after position i that is
// not a repetition of the connective word.
func (p *Parser) skipFillers(tokens []string, i int, connective string) int {
	j := i + 1
	for j < len(tokens) && strings.ToLower(tokens[j]) == connective {
		j++
	}
	return j
}

// parseAbsolute reads a date, an optional time of day, or a time of day alone
// from the head of tokens. It returns how many tokens were consumed; zero means
// the tokens do not start an absolute clause.
func (p *Parser) parseAbsolute(tokens []string, expr *Expression) (int, error) {
	if len(tokens) == 0 {
		return 0, nil
	}

	consumed := 0
	date, ok, err := p.parseDate(tokens[0])
	if err != nil {
		return 0, err
	}
	if ok {
		consumed = 1
	}

	clock, n, err := parseClock(tokens[consumed:])
	if err != nil {
		return 0, err
	}
	consumed += n

	if date == nil && clock == nil {
		return 0, nil
	}
	if expr.Date != nil || expr.Clock != nil {
		return 0, ierrors.ParseError("more than one absolute time")
	}
	expr.Date = date
	expr.Clock = clock
	return consumed, nil
}

func (p *Parser) parseDate(token string) (*Date, bool, error) {
	m := datePattern.FindStringSubmatch(token)
	if m == nil {
		return nil, false, nil
	}

	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	var date Date

	switch {
	case len(m[1]) == 4:
		if m[3] == "" {
			return nil, false, ierrors.ParseError("incomplete date %q", token)
		}
		date.Year = a
		date.Month = time.Month(b)
		date.Day, _ = strconv.Atoi(m[3])
	case len(m[1]) > 2:
		return nil, false, ierrors.ParseError("malformed date %q", token)
	default:
		if p.locale.MonthFirst {
			date.Month, date.Day = time.Month(a), b
		} else {
			date.Day, date.Month = a, time.Month(b)
		}
		if m[3] != "" {
			y, _ := strconv.Atoi(m[3])
			switch len(m[3]) {
			case 1, 2:
				y += 2000
			case 4:
			default:
				return nil, false, ierrors.ParseError("malformed year in %q", token)
			}
			date.Year = y
		}
	}

	if date.Month < time.January || date.Month > time.December {
		return nil, false, ierrors.ParseError("invalid month in %q", token)
	}
	if date.Day < 1 || date.Day > 31 {
		return nil, false, ierrors.ParseError("invalid day in %q", token)
	}
	return &date, true, nil
}

// parseClock reads "15:00", "3:00 pm", "3:00pm" or "3 pm". A bare number
// without a meridiem is not a time of day.
func parseClock(tokens []string) (*Clock, int, error) {
	if len(tokens) == 0 {
		return nil, 0, nil
	}
	m := clockPattern.FindStringSubmatch(strings.ToLower(tokens[0]))
	if m == nil {
		return nil, 0, nil
	}

	consumed := 1
	meridiem := m[3]
	if meridiem == "" && len(tokens) > 1 && meridiemPattern.MatchString(strings.ToLower(tokens[1])) {
		meridiem = strings.ToLower(tokens[1])
		consumed = 2
	}
	if m[2] == "" && meridiem == "" {
		return nil, 0, nil
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return nil, 0, ierrors.ParseError("invalid minute in %q", tokens[0])
	}

	switch strings.ReplaceAll(meridiem, ".", "") {
	case "am":
		if hour < 1 || hour > 12 {
			return nil, 0, ierrors.ParseError("invalid hour in %q", tokens[0])
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return nil, 0, ierrors.ParseError("invalid hour in %q", tokens[0])
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return nil, 0, ierrors.ParseError("invalid hour in %q", tokens[0])
		}
	}

	return &Clock{Hour: hour, Minute: minute}, consumed, nil
}

// scale multiplies a quantity by a unit, rejecting non-positive quantities,
// unknown units and overflow.
func scale(qty int, unitWord string) (time.Duration, error) {
	unit, ok := lookupUnit(unitWord)
	if !ok {
		return 0, ierrors.ParseError("unknown unit %q", unitWord)
	}
	if qty <= 0 {
		return 0, ierrors.ParseError("quantity must be positive, got %d", qty)
	}
	if int64(qty) > math.MaxInt64/int64(unit) {
		return 0, ierrors.ParseError("%d %s is too far away", qty, unitWord)
	}
	return time.Duration(qty) * unit, nil
}
