// Package filter evaluates CEL expressions against reminders, e.g.
//
//	recurring && name.contains("water")
//	fire_at < timestamp("2026-11-01T00:00:00Z")
package filter

import (
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	ierrors "github.com/hrygo/strawbean/internal/errors"
	"github.com/hrygo/strawbean/store"
)

// Variables visible to filter expressions.
var reminderVariables = []cel.EnvOption{
	cel.Variable("uid", cel.StringType),
	cel.Variable("number", cel.IntType),
	cel.Variable("name", cel.StringType),
	cel.Variable("content", cel.StringType),
	cel.Variable("fire_at", cel.TimestampType),
	cel.Variable("recurring", cel.BoolType),
	cel.Variable("interval", cel.DurationType),
	cel.Variable("created_at", cel.TimestampType),
}

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error
)

func reminderEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(reminderVariables...)
	})
	return env, envErr
}

// Filter is a compiled boolean expression over a reminder.
type Filter struct {
	expr    string
	program cel.Program
}

// Compile parses and type-checks expr. The expression must yield a bool.
func Compile(expr string) (*Filter, error) {
	e, err := reminderEnv()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filter environment")
	}
	ast, issues := e.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, ierrors.InvalidArgument("invalid filter: %v", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, ierrors.InvalidArgument("filter must be a boolean expression, got %s", ast.OutputType())
	}
	program, err := e.Program(ast)
	if err != nil {
		return nil, ierrors.InvalidArgument("invalid filter: %v", err)
	}
	return &Filter{expr: expr, program: program}, nil
}

func (f *Filter) String() string {
	return f.expr
}

// Match evaluates the filter against r.
func (f *Filter) Match(r *store.Reminder) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{
		"uid":        r.UID,
		"number":     int64(r.DisplayNumber()),
		"name":       r.Name,
		"content":    r.Content,
		"fire_at":    r.FireTime(),
		"recurring":  r.IsRecurring(),
		"interval":   r.Interval(),
		"created_at": time.Unix(r.CreatedTs, 0).UTC(),
	})
	if err != nil {
		return false, ierrors.InvalidArgument("failed to evaluate filter: %v", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, ierrors.InvalidArgument("filter did not produce a boolean")
	}
	return matched, nil
}

// Apply returns the reminders matching f, keeping their order. A nil filter
// matches everything.
func Apply(f *Filter, reminders []*store.Reminder) ([]*store.Reminder, error) {
	if f == nil {
		return reminders, nil
	}
	out := make([]*store.Reminder, 0, len(reminders))
	for _, r := range reminders {
		ok, err := f.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}
