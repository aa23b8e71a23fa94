package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sleepydirt/vision/internal/adapter/metrics"
	"github.com/sleepydirt/vision/internal/domain"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// ErrHubStopped is returned by Register once Stop has been called.
var ErrHubStopped = errors.New("push hub stopped")

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type notifyCmd struct {
	baseHubCmd
	data         []byte
	replyChannel chan bool
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub fans request updates out to every attached client view. A single actor
// goroutine owns the client set; each client gets its own writer goroutine.
type Hub struct {
	cmdCh          chan hubCmd
	clock          clockwork.Clock
	clients        map[*websocket.Conn]*clientWriter
	maxConnections int
	metrics        *metrics.PushMetrics
	done           chan struct{}
	stopTimeout    time.Duration
}

var _ domain.Notifier = (*Hub)(nil)

// NewHub starts the hub actor. maxConnections bounds the number of attached
// clients; further registrations are rejected.
func NewHub(clock clockwork.Clock, maxConnections int, pushMetrics *metrics.PushMetrics) *Hub {
	h := &Hub{
		cmdCh:          make(chan hubCmd, 256),
		clock:          clock,
		clients:        make(map[*websocket.Conn]*clientWriter),
		maxConnections: maxConnections,
		metrics:        pushMetrics,
		done:           make(chan struct{}),
		stopTimeout:    stopTimeout,
	}
	go h.run()
	return h
}

// Register attaches a connection. The hub takes ownership of all writes to it;
// the caller keeps reading so control frames get processed.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	if !h.send(registerCmd{connection: conn, errorChannel: errCh}) {
		_ = conn.Close()
		return ErrHubStopped
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		// The register is still queued. Queue its undo behind it.
		h.Unregister(conn)
		_ = conn.Close()
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	case <-h.done:
		_ = conn.Close()
		return ErrHubStopped
	}
}

// Serve registers conn and then reads from it until the peer goes away.
// Client views only listen, so inbound data frames are discarded.
func (h *Hub) Serve(conn *websocket.Conn) error {
	if err := h.Register(conn); err != nil {
		return err
	}
	defer h.Unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Unregister detaches and closes a connection. Unknown connections are ignored.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.send(unregisterCmd{connection: conn})
}

// Notify pushes an update to every attached client. It reports true when at
// least one client accepted the frame into its send buffer.
func (h *Hub) Notify(ctx context.Context, update domain.RequestUpdate) bool {
	data, err := json.Marshal(update)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal request update", "request_id", update.RequestID, "error", err)
		return false
	}

	replyCh := make(chan bool, 1)
	if !h.send(notifyCmd{data: data, replyChannel: replyCh}) {
		return false
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case delivered := <-replyCh:
		return delivered
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		slog.WarnContext(ctx, "Notify timed out", "request_id", update.RequestID, "timeout", commandTimeout)
		return false
	case <-h.done:
		return false
	}
}

// ClientCount returns the number of attached clients, or -1 if the hub did
// not answer in time.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	if !h.send(clientCountCmd{replyChannel: replyCh}) {
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	case <-h.done:
		return 0
	}
}

// Stop closes every client with a close frame and waits for the actor to exit.
// It is safe to call more than once.
func (h *Hub) Stop() {
	h.send(stopCmd{})

	timeout := h.clock.NewTimer(h.stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Push hub stopped")
	case <-timeout.Chan():
		slog.Warn("Push hub stop timeout exceeded", "timeout", h.stopTimeout)
	}
}

// send enqueues a command unless the actor has already exited.
func (h *Hub) send(cmd hubCmd) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Push hub panic recovered", "panic", r)
			h.closeAllClients("server error")
		}
	}()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.connection)
		case notifyCmd:
			c.replyChannel <- h.handleNotify(c.data)
		case clientCountCmd:
			c.replyChannel <- len(h.clients)
		case stopCmd:
			h.closeAllClients("server shutting down")
			return
		default:
			slog.Warn("Push hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if h.maxConnections > 0 && len(h.clients) >= h.maxConnections {
		slog.Warn("Rejecting client: max connections reached", "max_connections", h.maxConnections)
		_ = c.connection.Close()
		c.errorChannel <- fmt.Errorf("max connections (%d) reached", h.maxConnections)
		return
	}

	h.clients[c.connection] = newClientWriter(c.connection, h.clock)
	h.updateConnectionGauge()

	slog.Debug("Client attached", "remote_addr", c.connection.RemoteAddr().String(), "total_clients", len(h.clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)
	h.updateConnectionGauge()

	slog.Debug("Client detached", "remaining_clients", len(h.clients))
}

func (h *Hub) handleNotify(data []byte) bool {
	delivered := 0
	var slow []*websocket.Conn
	for conn, writer := range h.clients {
		if writer.enqueue(data) {
			delivered++
		} else {
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client")
		if h.metrics != nil {
			h.metrics.SlowClientsEvicted.Inc()
		}
		h.handleUnregister(conn)
	}

	outcome := "delivered"
	if delivered == 0 {
		outcome = "undelivered"
	}
	if h.metrics != nil {
		h.metrics.NotificationsTotal.WithLabelValues(outcome).Inc()
	}
	return delivered > 0
}

func (h *Hub) closeAllClients(reason string) {
	for conn, cw := range h.clients {
		cw.stopGraceful(reason)
		delete(h.clients, conn)
	}
	h.updateConnectionGauge()
}

func (h *Hub) updateConnectionGauge() {
	if h.metrics != nil {
		h.metrics.ActiveConnections.Set(float64(len(h.clients)))
	}
}
