package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/sleepydirt/vision/internal/adapter/metrics"
	wsadapter "github.com/sleepydirt/vision/internal/adapter/websocket"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/sleepydirt/vision/internal/platform/config"
)

// coordinator is the slice of app.Coordinator the message channel needs.
type coordinator interface {
	Submit(ctx context.Context, payload domain.Payload, id string) (domain.WorkItem, <-chan domain.WorkItem, error)
	Status(id string) domain.RequestStatus
	GlobalStatus() domain.SessionState
	Load(ctx context.Context) domain.Outcome
	Unload(ctx context.Context) domain.Outcome
}

// pushHub attaches an upgraded connection and blocks until it goes away.
type pushHub interface {
	Serve(conn *websocket.Conn) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Server
	clock  clockwork.Clock

	coordinator coordinator
	hub         pushHub
	upgrader    websocket.Upgrader

	submitLimiter  echo.MiddlewareFunc
	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	healthChecks   []HealthCheck
	startTime      time.Time
}

// NewServer wires the coordinator's HTTP surface. httpMetrics and
// metricsHandler may be nil, which leaves the routes uninstrumented and
// /metrics unregistered.
func NewServer(cfg *config.Server, clock clockwork.Clock, coord coordinator, hub pushHub, httpMetrics *metrics.HTTPMetrics, metricsHandler http.Handler, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:        e,
		config:      cfg,
		clock:       clock,
		coordinator: coord,
		hub:         hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: wsadapter.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
		},
		submitLimiter:  newRateLimiter(cfg.SubmitRateLimit, cfg.SubmitRateBurst),
		httpMetrics:    httpMetrics,
		metricsHandler: metricsHandler,
		healthChecks:   healthChecks,
		startTime:      clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
