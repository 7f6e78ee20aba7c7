package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	ierrors "github.com/hrygo/strawbean/internal/errors"
	"github.com/hrygo/strawbean/plugin/filter"
	"github.com/hrygo/strawbean/plugin/reminder"
	"github.com/hrygo/strawbean/server/auth"
	"github.com/hrygo/strawbean/server/internal/observability"
	"github.com/hrygo/strawbean/server/service/command"
)

// maxMessageLength bounds the directive text accepted in one request.
const maxMessageLength = 4096

// ExecuteDirectivesRequest is the body of POST /api/v1/directives.
type ExecuteDirectivesRequest struct {
	Message string `json:"message"`
}

// ExecuteDirectivesResponse carries one reply per executed directive.
type ExecuteDirectivesResponse struct {
	Replies []command.Reply `json:"replies"`
}

// ExecuteDirectives runs the directives of a message for the caller.
// Per-directive failures are reported in the replies, not as an HTTP error.
// POST /api/v1/directives
func (s *APIV1Service) ExecuteDirectives(c echo.Context) error {
	var req ExecuteDirectivesRequest
	if err := c.Bind(&req); err != nil {
		return ierrors.InvalidArgument("invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return ierrors.InvalidArgument("message is required")
	}
	if len(req.Message) > maxMessageLength {
		return ierrors.InvalidArgument("message is longer than %d bytes", maxMessageLength)
	}

	ctx := c.Request().Context()
	ownerID := auth.OwnerID(ctx)
	if reqCtx, ok := observability.FromContext(ctx); ok {
		reqCtx.OwnerID = ownerID
	}
	replies := s.Executor.Execute(ctx, ownerID, req.Message)
	return c.JSON(http.StatusOK, ExecuteDirectivesResponse{Replies: replies})
}

// ListRemindersResponse is the body of GET /api/v1/reminders.
type ListRemindersResponse struct {
	Reminders []ReminderView `json:"reminders"`
}

// ListReminders returns the caller's reminders in creation order, optionally
// narrowed by a CEL filter such as `recurring && name.contains("water")`.
// GET /api/v1/reminders?filter=
func (s *APIV1Service) ListReminders(c echo.Context) error {
	var f *filter.Filter
	if expr := strings.TrimSpace(c.QueryParam("filter")); expr != "" {
		compiled, err := filter.Compile(expr)
		if err != nil {
			return err
		}
		f = compiled
	}

	ctx := c.Request().Context()
	list, err := s.Reminders.List(ctx, auth.OwnerID(ctx))
	if err != nil {
		return err
	}
	list, err = filter.Apply(f, list)
	if err != nil {
		return err
	}

	views := make([]ReminderView, 0, len(list))
	for _, r := range list {
		views = append(views, s.toView(r))
	}
	return c.JSON(http.StatusOK, ListRemindersResponse{Reminders: views})
}

// GetReminder returns one reminder by display number or "latest".
// GET /api/v1/reminders/:number
func (s *APIV1Service) GetReminder(c echo.Context) error {
	sel, err := reminder.ParseSelector(c.Param("number"))
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	r, err := s.Reminders.Get(ctx, auth.OwnerID(ctx), sel)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.toView(r))
}

// DeleteReminder removes one reminder by display number or "latest" and
// returns it.
// DELETE /api/v1/reminders/:number
func (s *APIV1Service) DeleteReminder(c echo.Context) error {
	sel, err := reminder.ParseSelector(c.Param("number"))
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	r, err := s.Reminders.RemoveOne(ctx, auth.OwnerID(ctx), sel)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.toView(r))
}
