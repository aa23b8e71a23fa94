package httpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/sleepydirt/vision/internal/platform/config"
)

// --- Mock implementations ---

type mockCoordinator struct {
	submitFn       func(ctx context.Context, payload domain.Payload, id string) (domain.WorkItem, <-chan domain.WorkItem, error)
	statusFn       func(id string) domain.RequestStatus
	globalStatusFn func() domain.SessionState
	loadFn         func(ctx context.Context) domain.Outcome
	unloadFn       func(ctx context.Context) domain.Outcome
}

func (m *mockCoordinator) Submit(ctx context.Context, payload domain.Payload, id string) (domain.WorkItem, <-chan domain.WorkItem, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, payload, id)
	}
	return domain.WorkItem{}, nil, errors.New("not implemented")
}

func (m *mockCoordinator) Status(id string) domain.RequestStatus {
	if m.statusFn != nil {
		return m.statusFn(id)
	}
	return domain.UnknownRequestStatus()
}

func (m *mockCoordinator) GlobalStatus() domain.SessionState {
	if m.globalStatusFn != nil {
		return m.globalStatusFn()
	}
	return domain.SessionUnloaded
}

func (m *mockCoordinator) Load(ctx context.Context) domain.Outcome {
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return domain.Failed("not implemented")
}

func (m *mockCoordinator) Unload(ctx context.Context) domain.Outcome {
	if m.unloadFn != nil {
		return m.unloadFn(ctx)
	}
	return domain.Failed("not implemented")
}

type mockHub struct {
	serveFn func(conn *websocket.Conn) error
}

func (m *mockHub) Serve(conn *websocket.Conn) error {
	if m.serveFn != nil {
		return m.serveFn(conn)
	}
	_ = conn.Close()
	return errors.New("not implemented")
}

// --- Test server construction ---

type testServerOption func(*testServerOptions)

type testServerOptions struct {
	hub          pushHub
	healthChecks []HealthCheck
	rateLimit    float64
	rateBurst    int
}

func withHub(hub pushHub) testServerOption {
	return func(o *testServerOptions) { o.hub = hub }
}

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *testServerOptions) { o.healthChecks = checks }
}

func withSubmitRate(limit float64, burst int) testServerOption {
	return func(o *testServerOptions) {
		o.rateLimit = limit
		o.rateBurst = burst
	}
}

func testConfig() *config.Server {
	return &config.Server{
		AppEnv:          "development",
		Port:            "0",
		AppURL:          "http://localhost:8080",
		SubmitRateLimit: 100,
		SubmitRateBurst: 100,
	}
}

func newTestServer(t *testing.T, coord coordinator, opts ...testServerOption) *Server {
	t.Helper()

	o := &testServerOptions{hub: &mockHub{}}
	for _, opt := range opts {
		opt(o)
	}

	cfg := testConfig()
	if o.rateBurst > 0 {
		cfg.SubmitRateLimit = o.rateLimit
		cfg.SubmitRateBurst = o.rateBurst
	}

	return NewServer(cfg, clockwork.NewFakeClock(), coord, o.hub, nil, nil, o.healthChecks)
}
