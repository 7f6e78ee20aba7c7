// Package command executes the directives of a chat message against an
// owner's reminders.
package command

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ierrors "github.com/hrygo/strawbean/internal/errors"
	"github.com/hrygo/strawbean/internal/profile"
	"github.com/hrygo/strawbean/plugin/directive"
	"github.com/hrygo/strawbean/plugin/reminder"
	"github.com/hrygo/strawbean/plugin/timeexpr"
	"github.com/hrygo/strawbean/server/internal/observability"
	"github.com/hrygo/strawbean/store"
)

// Reply is the outcome of one directive.
type Reply struct {
	Command string `json:"command" yaml:"command"`
	// Number is the display number of the affected reminder, zero if none.
	Number int               `json:"number,omitempty" yaml:"number,omitempty"`
	Title  string            `json:"title,omitempty" yaml:"title,omitempty"`
	Body   string            `json:"body,omitempty" yaml:"body,omitempty"`
	Error  string            `json:"error,omitempty" yaml:"error,omitempty"`
	Code   ierrors.ErrorCode `json:"code,omitempty" yaml:"code,omitempty"`
}

// Failed reports whether the directive produced an error.
func (r Reply) Failed() bool {
	return r.Error != ""
}

// Config controls how directives are read and replies rendered.
type Config struct {
	Prefix   string
	Locale   timeexpr.Locale
	Location *time.Location
}

// ConfigFromProfile derives the executor configuration from a validated profile.
func ConfigFromProfile(p *profile.Profile) Config {
	return Config{Prefix: p.Prefix, Locale: p.ParsedLocale(), Location: p.Location()}
}

// Executor runs directives.
type Executor struct {
	reminders *reminder.Service
	parser    *timeexpr.Parser
	config    Config
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewExecutor creates an executor over the reminder service.
func NewExecutor(reminders *reminder.Service, config Config) *Executor {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Executor{
		reminders: reminders,
		parser:    timeexpr.NewParser(config.Locale),
		config:    config,
		metrics:   observability.NewMetrics(1000),
		logger:    slog.Default(),
	}
}

// SetLogger sets a custom logger.
func (e *Executor) SetLogger(logger *slog.Logger) {
	e.logger = logger
}

// Metrics returns the per-command counters.
func (e *Executor) Metrics() *observability.Metrics {
	return e.metrics
}

// StripPrefix removes the command prefix from the start of message, if present.
func (e *Executor) StripPrefix(message string) string {
	message = strings.TrimSpace(message)
	if e.config.Prefix != "" {
		message = strings.TrimPrefix(message, e.config.Prefix)
	}
	return message
}

// Execute runs every directive in message for ownerID, in order, and returns
// one reply per directive. A failing directive does not stop the ones after it.
func (e *Executor) Execute(ctx context.Context, ownerID, message string) []Reply {
	reqCtx := observability.FromContextOrNew(ctx, e.logger, ownerID)
	replies := []Reply{}

	for d := range directive.Split(e.StripPrefix(message)) {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		reply, err := e.run(ctx, ownerID, d)
		e.metrics.RecordRequest(d.Kind)
		e.metrics.RecordDuration(d.Kind, time.Since(start))

		log := reqCtx.ForCommand(d.Kind)
		if err != nil {
			e.metrics.RecordFailure(d.Kind)
			code := ierrors.GetCodeFromError(err, ierrors.ErrCodeInternal)
			reply = Reply{Command: d.Kind, Error: userMessage(err), Code: code}
			if code == ierrors.ErrCodeInternal {
				log.Error("directive failed", err)
			} else {
				log.Debug("directive rejected", slog.String(observability.LogFieldErrorCode, string(code)), slog.String("error", reply.Error))
			}
		} else {
			log.Debug("directive executed", slog.Int64(observability.LogFieldDuration, time.Since(start).Milliseconds()))
		}
		replies = append(replies, reply)
	}
	return replies
}

func (e *Executor) run(ctx context.Context, ownerID string, d directive.Directive) (Reply, error) {
	switch d.Kind {
	case directive.KindRemindMe:
		return e.remindMe(ctx, ownerID, d)
	case directive.KindRename:
		return e.rename(ctx, ownerID, d)
	case directive.KindTime:
		return e.adjustTime(ctx, ownerID, d)
	case directive.KindRemove:
		return e.remove(ctx, ownerID, d)
	case directive.KindList:
		return e.list(ctx, ownerID, d)
	case directive.KindHelp:
		return Reply{Command: d.Kind, Title: "help", Body: Help(e.config.Prefix)}, nil
	default:
		return Reply{}, ierrors.InvalidArgument("unknown command %q, try %shelp", d.Kind, e.config.Prefix)
	}
}

func (e *Executor) remindMe(ctx context.Context, ownerID string, d directive.Directive) (Reply, error) {
	expr, err := e.parser.Parse(d.Args)
	if err != nil {
		return Reply{}, err
	}
	fireAt, err := expr.Resolve(e.reminders.Now(), e.config.Location)
	if err != nil {
		return Reply{}, err
	}
	r, err := e.reminders.Create(ctx, reminder.CreateRequest{
		OwnerID:  ownerID,
		Content:  d.Text,
		Time:     fireAt,
		Interval: expr.Repeat,
	})
	if err != nil {
		return Reply{}, err
	}
	return e.reminderReply(d.Kind, r, e.describe(r)), nil
}

func (e *Executor) rename(ctx context.Context, ownerID string, d directive.Directive) (Reply, error) {
	sel, rest, err := splitSelector(d.Args, "rename <latest|number> <name>")
	if err != nil {
		return Reply{}, err
	}
	r, err := e.reminders.Rename(ctx, ownerID, sel, rest)
	if err != nil {
		return Reply{}, err
	}
	return e.reminderReply(d.Kind, r, "renamed"), nil
}

// adjustTime handles "time <selector> in <duration>", which moves the current
// fire time, and "time <selector> at <date> [time]", which replaces it.
func (e *Executor) adjustTime(ctx context.Context, ownerID string, d directive.Directive) (Reply, error) {
	sel, rest, err := splitSelector(d.Args, "time <latest|number> in <duration> | at <date> [time]")
	if err != nil {
		return Reply{}, err
	}
	expr, err := e.parser.Parse(rest)
	if err != nil {
		return Reply{}, err
	}
	// The repeat interval is fixed at creation.
	if expr.IsRecurring() {
		return Reply{}, ierrors.InvalidArgument("time cannot change how often a reminder repeats, remove it and create a new one")
	}

	var r *store.Reminder
	if expr.IsAbsolute() {
		fireAt, err := expr.Resolve(e.reminders.Now(), e.config.Location)
		if err != nil {
			return Reply{}, err
		}
		r, err = e.reminders.SetTime(ctx, ownerID, sel, fireAt)
		if err != nil {
			return Reply{}, err
		}
	} else {
		r, err = e.reminders.AdjustTime(ctx, ownerID, sel, expr.Relative)
		if err != nil {
			return Reply{}, err
		}
	}
	return e.reminderReply(d.Kind, r, e.describe(r)), nil
}

func (e *Executor) remove(ctx context.Context, ownerID string, d directive.Directive) (Reply, error) {
	if strings.EqualFold(d.Args, "all") {
		n, err := e.reminders.RemoveAll(ctx, ownerID)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Command: d.Kind, Title: "removed", Body: fmt.Sprintf("removed %d %s", n, plural(n, "reminder"))}, nil
	}
	if d.Args == "" || strings.Contains(d.Args, " ") {
		return Reply{}, ierrors.InvalidArgument("usage: remove <all|latest|number>")
	}
	sel, err := reminder.ParseSelector(d.Args)
	if err != nil {
		return Reply{}, err
	}
	r, err := e.reminders.RemoveOne(ctx, ownerID, sel)
	if err != nil {
		return Reply{}, err
	}
	return e.reminderReply(d.Kind, r, "removed"), nil
}

func (e *Executor) list(ctx context.Context, ownerID string, d directive.Directive) (Reply, error) {
	reminders, err := e.reminders.List(ctx, ownerID)
	if err != nil {
		return Reply{}, err
	}
	if len(reminders) == 0 {
		return Reply{Command: d.Kind, Title: "reminders", Body: "you have no reminders"}, nil
	}
	lines := make([]string, 0, len(reminders))
	for _, r := range reminders {
		lines = append(lines, fmt.Sprintf("%s: %s", title(r), e.describe(r)))
	}
	return Reply{Command: d.Kind, Title: "reminders", Body: strings.Join(lines, "\n")}, nil
}

func (e *Executor) reminderReply(kind string, r *store.Reminder, body string) Reply {
	return Reply{Command: kind, Number: r.DisplayNumber(), Title: title(r), Body: body}
}

// describe renders the fire time in the configured locale, with the repeat
// interval for recurring reminders.
func (e *Executor) describe(r *store.Reminder) string {
	when := e.config.Locale.Format(r.FireTime(), e.config.Location)
	if r.IsRecurring() {
		return fmt.Sprintf("%s, every %s", when, FormatInterval(r.Interval()))
	}
	return when
}

func title(r *store.Reminder) string {
	return fmt.Sprintf("#%d %s", r.DisplayNumber(), r.Name)
}

// splitSelector splits "<selector> <rest>" and requires both parts.
func splitSelector(args, usage string) (reminder.Selector, string, error) {
	word, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)
	if word == "" || rest == "" {
		return reminder.Selector{}, "", ierrors.InvalidArgument("usage: %s", usage)
	}
	sel, err := reminder.ParseSelector(word)
	if err != nil {
		return reminder.Selector{}, "", err
	}
	return sel, rest, nil
}

var intervalUnits = []struct {
	name     string
	duration time.Duration
}{
	{"week", timeexpr.Week},
	{"day", timeexpr.Day},
	{"hour", time.Hour},
	{"minute", time.Minute},
}

// FormatInterval renders d in the largest unit that divides it, e.g. "2 weeks".
func FormatInterval(d time.Duration) string {
	for _, u := range intervalUnits {
		if d >= u.duration && d%u.duration == 0 {
			n := int64(d / u.duration)
			return fmt.Sprintf("%d %s", n, plural(n, u.name))
		}
	}
	return d.String()
}

func plural(n int64, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// userMessage is the error text shown to the owner. Unexpected failures are
// not exposed.
func userMessage(err error) string {
	var e *ierrors.Error
	if stderrors.As(err, &e) && e.Code != ierrors.ErrCodeInternal {
		return e.Message
	}
	return "something went wrong, please try again"
}
