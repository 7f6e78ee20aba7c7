package reminder

import (
	"strconv"
	"strings"

	ierrors "github.com/hrygo/strawbean/internal/errors"
)

// Selector picks one of an owner's reminders: the latest, or a 1-based
// display number.
type Selector struct {
	Latest bool
	Number int
}

// LatestSelector selects the reminder with the highest remove_id.
var LatestSelector = Selector{Latest: true}

// NumberSelector selects the reminder shown as #n.
func NumberSelector(n int) Selector {
	return Selector{Number: n}
}

// ParseSelector parses "latest" or a positive display number.
func ParseSelector(word string) (Selector, error) {
	switch strings.ToLower(word) {
	case "latest", "last":
		return LatestSelector, nil
	}
	n, err := strconv.Atoi(word)
	if err != nil || n <= 0 {
		return Selector{}, ierrors.InvalidArgument("expected \"latest\" or a reminder number, got %q", word)
	}
	return NumberSelector(n), nil
}

func (s Selector) String() string {
	if s.Latest {
		return "latest"
	}
	return "#" + strconv.Itoa(s.Number)
}
