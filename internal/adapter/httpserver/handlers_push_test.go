package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sleepydirt/vision/internal/adapter/metrics"
	wsadapter "github.com/sleepydirt/vision/internal/adapter/websocket"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush_DeliversRequestUpdate(t *testing.T) {
	hub := wsadapter.NewHub(clockwork.NewRealClock(), 0, nil)
	t.Cleanup(hub.Stop)

	srv := newTestServer(t, &mockCoordinator{}, withHub(hub))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	delivered := hub.Notify(context.Background(), domain.NewRequestUpdate(domain.WorkItem{
		ID:     "r1",
		Status: domain.WorkCompleted,
		Result: &domain.Result{Success: true, Explanation: "a dog"},
	}))
	require.True(t, delivered)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"requestUpdate","requestId":"r1","status":"completed","result":{"success":true,"explanation":"a dog"}}`, string(data))
}

func TestPush_RejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t, &mockCoordinator{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMetricsRoute(t *testing.T) {
	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	srv := NewServer(testConfig(), clockwork.NewRealClock(), &mockCoordinator{}, &mockHub{}, httpMetrics, metrics.Handler(reg), nil)

	rec := postMessage(t, srv, `{"action":"checkModelStatus"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(metricsRec, req)

	assert.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), `vision_http_requests_total{method="POST",route="/api/messages",status_code="200"} 1`)
}
