package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sleepydirt/vision/internal/adapter/metrics"
	"github.com/sleepydirt/vision/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	loadKey        = "model"
	disposeTimeout = 10 * time.Second
)

// Manager is the resource session. Construct one per process with NewManager.
type Manager struct {
	loader      domain.ModelLoader
	clock       clockwork.Clock
	loadTimeout time.Duration
	metrics     *metrics.SessionMetrics

	mu         sync.Mutex
	state      domain.SessionState
	processor  domain.Processor
	generator  domain.Generator
	generation uint64

	loads singleflight.Group
}

var _ domain.ResourceSession = (*Manager)(nil)

// NewManager creates an Unloaded session. loadTimeout bounds a single load
// (0 = unbounded). sessionMetrics may be nil.
func NewManager(loader domain.ModelLoader, clock clockwork.Clock, loadTimeout time.Duration, sessionMetrics *metrics.SessionMetrics) *Manager {
	m := &Manager{
		loader:      loader,
		clock:       clock,
		loadTimeout: loadTimeout,
		metrics:     sessionMetrics,
		state:       domain.SessionUnloaded,
	}
	m.recordState(domain.SessionUnloaded)
	return m
}

// Status returns the current state without waiting on any load.
func (m *Manager) Status() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Acquire makes sure the model is loaded. A call made while a load is in
// flight joins it. If ctx ends first the caller gets a failure outcome and
// the shared load carries on for everyone else.
func (m *Manager) Acquire(ctx context.Context) domain.Outcome {
	if m.Status() == domain.SessionLoaded {
		return domain.Succeeded()
	}

	ch := m.loads.DoChan(loadKey, func() (any, error) {
		return m.load(), nil
	})

	select {
	case res := <-ch:
		if outcome, ok := res.Val.(domain.Outcome); ok {
			return outcome
		}
		return domain.Failed("model load returned no outcome")
	case <-ctx.Done():
		return domain.Failed(fmt.Sprintf("stopped waiting for model load: %v", ctx.Err()))
	}
}

func (m *Manager) load() (outcome domain.Outcome) {
	m.mu.Lock()
	if m.state == domain.SessionLoaded {
		m.mu.Unlock()
		return domain.Succeeded()
	}
	m.setStateLocked(domain.SessionLoading)
	gen := m.generation
	m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			outcome = m.failLoad(gen, fmt.Errorf("model load panicked: %v", r))
		}
	}()

	ctx := context.Background()
	if m.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.loadTimeout)
		defer cancel()
	}

	start := m.clock.Now()
	slog.Info("Loading model")

	processor, err := m.loader.LoadProcessor(ctx)
	if err != nil {
		return m.failLoad(gen, fmt.Errorf("load processor: %w", err))
	}

	generator, err := m.loader.LoadGenerator(ctx)
	if err != nil {
		m.dispose("processor", processor)
		return m.failLoad(gen, fmt.Errorf("load generator: %w", err))
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		slog.Warn("Model load completed after teardown, discarding")
		m.dispose("generator", generator)
		m.dispose("processor", processor)
		m.recordLoad("discarded", start)
		return domain.Failed(domain.ErrSessionTornDown.Error())
	}
	m.processor = processor
	m.generator = generator
	m.setStateLocked(domain.SessionLoaded)
	m.mu.Unlock()

	m.recordLoad("success", start)
	slog.Info("Model loaded", "duration", m.clock.Since(start))
	return domain.Succeeded()
}

func (m *Manager) failLoad(gen uint64, err error) domain.Outcome {
	m.mu.Lock()
	if m.generation == gen {
		m.setStateLocked(domain.SessionFailed)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.LoadsTotal.WithLabelValues("failure").Inc()
	}
	slog.Error("Model load failed", "error", err)
	return domain.Failed(err.Error())
}

// Release unloads the model if it is loaded. Handles are dropped and the
// state is Unloaded before disposal starts; disposal errors are logged only.
func (m *Manager) Release(ctx context.Context) domain.Outcome {
	m.mu.Lock()
	if m.state != domain.SessionLoaded {
		m.mu.Unlock()
		return domain.Succeeded()
	}
	processor, generator := m.processor, m.generator
	m.processor, m.generator = nil, nil
	m.generation++
	m.setStateLocked(domain.SessionUnloaded)
	m.mu.Unlock()

	slog.InfoContext(ctx, "Unloading model")
	m.dispose("generator", generator)
	m.dispose("processor", processor)

	if m.metrics != nil {
		m.metrics.ReleasesTotal.Inc()
	}
	return domain.Succeeded()
}

// Teardown forces the session to Unloaded without disposing anything. Used
// when the process is about to go away. A load still in flight discards its
// result when it finishes, and the next Acquire starts a new one rather than
// joining it.
func (m *Manager) Teardown() {
	m.mu.Lock()
	m.processor, m.generator = nil, nil
	m.generation++
	m.setStateLocked(domain.SessionUnloaded)
	m.loads.Forget(loadKey)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.Teardowns.Inc()
	}
	slog.Info("Model session torn down")
}

// Infer runs one explanation against the handles current at call time.
// A concurrent Release does not interrupt it.
func (m *Manager) Infer(ctx context.Context, payload domain.Payload) (string, error) {
	m.mu.Lock()
	if m.state != domain.SessionLoaded {
		m.mu.Unlock()
		return "", domain.ErrResourceNotLoaded
	}
	processor, generator := m.processor, m.generator
	m.mu.Unlock()

	prepared, err := processor.Prepare(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("prepare input: %w", err)
	}

	text, err := generator.Generate(ctx, prepared)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return text, nil
}

func (m *Manager) dispose(name string, r domain.Releaser) {
	if r == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			m.recordDisposeError()
			slog.Warn("Dispose panicked, continuing cleanup", "component", name, "panic", p)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), disposeTimeout)
	defer cancel()

	if err := r.Release(ctx); err != nil {
		m.recordDisposeError()
		slog.Warn("Error during dispose, continuing cleanup", "component", name, "error", err)
	}
}

func (m *Manager) setStateLocked(state domain.SessionState) {
	m.state = state
	m.recordState(state)
}

func (m *Manager) recordState(state domain.SessionState) {
	if m.metrics != nil {
		m.metrics.State.Set(float64(state))
	}
}

func (m *Manager) recordLoad(result string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.LoadsTotal.WithLabelValues(result).Inc()
	m.metrics.LoadDuration.Observe(m.clock.Since(start).Seconds())
}

func (m *Manager) recordDisposeError() {
	if m.metrics != nil {
		m.metrics.DisposeErrors.Inc()
	}
}
