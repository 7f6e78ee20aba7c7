// Package v1 serves the HTTP API: directives, reminders, the RSS feed and the
// notification stream.
package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/strawbean/internal/profile"
	"github.com/hrygo/strawbean/plugin/reminder"
	"github.com/hrygo/strawbean/server/auth"
	"github.com/hrygo/strawbean/server/internal/observability"
	"github.com/hrygo/strawbean/server/middleware"
	"github.com/hrygo/strawbean/server/service/command"
	"github.com/hrygo/strawbean/store"
)

// APIV1Service holds the handlers' collaborators.
type APIV1Service struct {
	Profile     *profile.Profile
	Reminders   *reminder.Service
	Executor    *command.Executor
	Scheduler   *reminder.Scheduler
	Auth        *auth.Authenticator
	Hub         *StreamHub
	RateLimiter *middleware.RateLimiter

	health *reminder.HealthCheck
	logger *slog.Logger
}

// NewAPIV1Service wires the API over an executor and its scheduler. scheduler
// may be nil when no dispatch loop runs in this process.
func NewAPIV1Service(p *profile.Profile, executor *command.Executor, reminders *reminder.Service, scheduler *reminder.Scheduler) *APIV1Service {
	s := &APIV1Service{
		Profile:     p,
		Reminders:   reminders,
		Executor:    executor,
		Scheduler:   scheduler,
		Auth:        auth.NewAuthenticator(p.Secret),
		Hub:         NewStreamHub(),
		RateLimiter: middleware.NewRateLimiter(p.RateLimitPerSecond, p.RateLimitBurst),
		logger:      slog.Default(),
	}
	if scheduler != nil {
		s.health = reminder.NewHealthCheck(scheduler)
	}
	return s
}

// SetLogger sets a custom logger.
func (s *APIV1Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
	s.Hub.SetLogger(logger)
}

// Register mounts the API routes on e.
func (s *APIV1Service) Register(e *echo.Echo) {
	e.GET("/healthz", s.Healthz)

	limit := s.RateLimiter.Middleware(func(c echo.Context) string {
		return auth.OwnerID(c.Request().Context())
	})

	api := e.Group("/api/v1")
	api.Use(s.requestContext)

	// Feed readers and browsers cannot set headers, so these two accept ?token=.
	api.GET("/reminders/feed", s.GetReminderFeed, s.Auth.Middleware(true), limit)
	api.GET("/stream", s.Hub.HandleStream, s.Auth.Middleware(true))

	authed := api.Group("", s.Auth.Middleware(false), limit)
	authed.POST("/directives", s.ExecuteDirectives)
	authed.GET("/reminders", s.ListReminders)
	authed.GET("/reminders/:number", s.GetReminder)
	authed.DELETE("/reminders/:number", s.DeleteReminder)
	authed.GET("/metrics", s.GetMetrics)
}

// requestContext attaches a request-scoped logger context. The owner is filled
// in once authentication has run.
func (s *APIV1Service) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		reqCtx := observability.NewRequestContextWithID(s.logger, req.Header.Get(echo.HeaderXRequestID), "")
		c.Response().Header().Set(echo.HeaderXRequestID, reqCtx.RequestID)
		c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), reqCtx)))

		err := next(c)
		reqCtx.OwnerID = auth.OwnerID(c.Request().Context())
		reqCtx.Debug("request served",
			slog.String("method", req.Method),
			slog.String("path", c.Path()),
			slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
		)
		return err
	}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Scheduler *reminder.HealthStatus `json:"scheduler,omitempty"`
}

// Healthz reports whether the dispatch loop is running.
// GET /healthz
func (s *APIV1Service) Healthz(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Version: s.Profile.Version}
	if s.health != nil {
		status := s.health.Check()
		resp.Scheduler = &status
		if !status.Healthy {
			resp.Status = "unavailable"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// MetricsResponse is the body of GET /api/v1/metrics.
type MetricsResponse struct {
	Commands    *observability.MetricsSnapshot `json:"commands"`
	SuccessRate float64                        `json:"success_rate"`
	Scheduler   *reminder.Stats                `json:"scheduler,omitempty"`
}

// GetMetrics returns directive counters and scheduler statistics.
// GET /api/v1/metrics
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	snapshot := s.Executor.Metrics().Snapshot()
	resp := MetricsResponse{Commands: snapshot, SuccessRate: snapshot.SuccessRate()}
	if s.Scheduler != nil {
		stats := s.Scheduler.Metrics().GetStats()
		resp.Scheduler = &stats
	}
	return c.JSON(http.StatusOK, resp)
}

// ReminderView is the API representation of a reminder.
type ReminderView struct {
	UID        string    `json:"uid"`
	Number     int       `json:"number"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	FireAt     time.Time `json:"fire_at"`
	Display    string    `json:"display"`
	Recurring  bool      `json:"recurring"`
	IntervalMs int64     `json:"interval_ms,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *APIV1Service) toView(r *store.Reminder) ReminderView {
	return ReminderView{
		UID:        r.UID,
		Number:     r.DisplayNumber(),
		Name:       r.Name,
		Content:    r.Content,
		FireAt:     r.FireTime(),
		Display:    s.Profile.ParsedLocale().Format(r.FireTime(), s.Profile.Location()),
		Recurring:  r.IsRecurring(),
		IntervalMs: r.SetTime,
		CreatedAt:  time.Unix(r.CreatedTs, 0).UTC(),
	}
}
