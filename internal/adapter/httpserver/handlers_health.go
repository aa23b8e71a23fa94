package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/sleepydirt/vision/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// healthReport is the body of every /health endpoint. Session is the
// coordinator's own state and Model is what clients would be told.
type healthReport struct {
	Status      string             `json:"status"`
	Session     string             `json:"session"`
	Model       domain.ModelStatus `json:"model"`
	Uptime      *float64           `json:"uptime,omitempty"`
	FailedCheck string             `json:"failed_check,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) sessionReport(status string) healthReport {
	state := s.coordinator.GlobalStatus()
	return healthReport{Status: status, Session: state.String(), Model: state.WireStatus()}
}

func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	return s.runHealthChecks(c, ctx)
}

// A failed model load leaves the process alive, so liveness never looks at
// the session beyond reporting it.
func (s *Server) handleLiveness(c echo.Context) error {
	report := s.sessionReport("ok")
	uptime := s.clock.Since(s.startTime).Seconds()
	report.Uptime = &uptime

	if err := c.JSON(http.StatusOK, report); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	return s.runHealthChecks(c, ctx)
}

// runHealthChecks answers 503 on the first failing check. An unloaded model
// is still ready: loads happen on demand.
func (s *Server) runHealthChecks(c echo.Context, ctx context.Context) error {
	code := http.StatusOK
	report := s.sessionReport("ready")

	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			code = http.StatusServiceUnavailable
			report.Status = "unhealthy"
			report.FailedCheck = hc.Name
			report.Error = err.Error()
			break
		}
	}

	if err := c.JSON(code, report); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
