// Package server assembles the reminder engine, its dispatch loop and the HTTP
// API into one process.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/strawbean/internal/profile"
	"github.com/hrygo/strawbean/plugin/reminder"
	httperrors "github.com/hrygo/strawbean/server/internal/errors"
	apiv1 "github.com/hrygo/strawbean/server/router/api/v1"
	"github.com/hrygo/strawbean/server/service/command"
	"github.com/hrygo/strawbean/store"
)

// DevSecret signs tokens outside prod when no secret is configured.
const DevSecret = "strawbean-dev-secret"

// ResolveSecret makes sure p carries a token signing secret. Prod requires
// one; other modes fall back to DevSecret.
func ResolveSecret(p *profile.Profile) error {
	if p.Secret != "" {
		return nil
	}
	if p.Mode == "prod" {
		return errors.New("STRAWBEAN_SECRET is required in prod mode")
	}
	p.Secret = DevSecret
	return nil
}

type Server struct {
	Profile   *profile.Profile
	Store     *store.Store
	Reminders *reminder.Service
	Executor  *command.Executor
	Scheduler *reminder.Scheduler
	API       *apiv1.APIV1Service

	echoServer *echo.Echo
	logger     *slog.Logger
}

// NewServer wires the engine over an opened and migrated store.
func NewServer(ctx context.Context, p *profile.Profile, s *store.Store) (*Server, error) {
	if err := ResolveSecret(p); err != nil {
		return nil, err
	}

	reminders := reminder.NewService(s, p.DefaultReminderName)
	executor := command.NewExecutor(reminders, command.ConfigFromProfile(p))

	notifier := reminder.NewMultiNotifier(reminder.NewLogNotifier(nil))
	if p.WebhookURL != "" {
		notifier.Register(reminder.NewWebhookNotifier(reminder.WebhookConfig{
			URL:     p.WebhookURL,
			Secret:  p.WebhookSecret,
			Timeout: p.NotifyTimeout,
		}))
	}
	scheduler := reminder.NewScheduler(reminders, notifier, reminder.SchedulerConfig{
		Interval:      p.TickInterval,
		NotifyTimeout: p.NotifyTimeout,
		Concurrency:   p.NotifyConcurrency,
	})

	api := apiv1.NewAPIV1Service(p, executor, reminders, scheduler)
	notifier.Register(api.Hub)

	echoServer := echo.New()
	echoServer.Debug = p.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.HTTPErrorHandler = httperrors.HTTPErrorHandler(nil)
	echoServer.Use(echomiddleware.Recover())
	echoServer.Use(echomiddleware.BodyLimit("64K"))
	api.Register(echoServer)

	slog.DebugContext(ctx, "server assembled",
		"driver", p.Driver,
		"timezone", p.Timezone,
		"locale", p.Locale,
		"webhook", p.WebhookURL != "",
	)

	return &Server{
		Profile:    p,
		Store:      s,
		Reminders:  reminders,
		Executor:   executor,
		Scheduler:  scheduler,
		API:        api,
		echoServer: echoServer,
		logger:     slog.Default(),
	}, nil
}

// Handler exposes the HTTP routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start begins dispatching reminders and serving HTTP. It returns once the
// listener is bound.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	s.echoServer.Listener = listener

	if err := s.Scheduler.Start(ctx); err != nil {
		listener.Close()
		return errors.Wrap(err, "failed to start scheduler")
	}

	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			s.logger.Error("failed to start echo server", "error", err)
		}
	}()
	s.logger.Info("strawbean started", "address", listener.Addr().String(), "version", s.Profile.Version)
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.echoServer.Listener == nil {
		return ""
	}
	return s.echoServer.Listener.Addr().String()
}

// Shutdown stops the dispatch loop, closes streams, drains HTTP requests and
// closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.logger.Info("server shutting down")

	s.Scheduler.Stop()
	s.API.Hub.Close()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		s.logger.Error("failed to close database", slog.String("error", err.Error()))
	}

	s.logger.Info("strawbean stopped properly")
}
