package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/sleepydirt/vision/internal/domain"
)

// --- Mock implementations ---

type mockSession struct {
	acquireFn func(ctx context.Context) domain.Outcome
	releaseFn func(ctx context.Context) domain.Outcome
	statusFn  func() domain.SessionState
	inferFn   func(ctx context.Context, payload domain.Payload) (string, error)
}

func (m *mockSession) Acquire(ctx context.Context) domain.Outcome {
	if m.acquireFn != nil {
		return m.acquireFn(ctx)
	}
	return domain.Succeeded()
}

func (m *mockSession) Release(ctx context.Context) domain.Outcome {
	if m.releaseFn != nil {
		return m.releaseFn(ctx)
	}
	return domain.Succeeded()
}

func (m *mockSession) Status() domain.SessionState {
	if m.statusFn != nil {
		return m.statusFn()
	}
	return domain.SessionLoaded
}

func (m *mockSession) Infer(ctx context.Context, payload domain.Payload) (string, error) {
	if m.inferFn != nil {
		return m.inferFn(ctx, payload)
	}
	return "", fmt.Errorf("not implemented")
}

// eventLog records store writes and pushes in the order they happen.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type mockWorkItemStore struct {
	log      *eventLog
	putFn    func(ctx context.Context, item domain.WorkItem) error
	deleteFn func(ctx context.Context, ids ...string) error
}

func (m *mockWorkItemStore) PutWorkItem(ctx context.Context, item domain.WorkItem) error {
	if m.log != nil {
		m.log.add("store:" + item.ID + ":" + string(item.Status))
	}
	if m.putFn != nil {
		return m.putFn(ctx, item)
	}
	return nil
}

func (m *mockWorkItemStore) GetWorkItem(context.Context, string) (*domain.WorkItem, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockWorkItemStore) ListWorkItems(context.Context) (map[string]domain.WorkItem, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockWorkItemStore) DeleteWorkItems(ctx context.Context, ids ...string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ids...)
	}
	return nil
}

type mockNotifier struct {
	log      *eventLog
	mu       sync.Mutex
	updates  []domain.RequestUpdate
	notifyFn func(ctx context.Context, update domain.RequestUpdate) bool
}

func (m *mockNotifier) Notify(ctx context.Context, update domain.RequestUpdate) bool {
	if m.log != nil {
		m.log.add("push:" + update.RequestID + ":" + string(update.Status))
	}
	m.mu.Lock()
	m.updates = append(m.updates, update)
	m.mu.Unlock()
	if m.notifyFn != nil {
		return m.notifyFn(ctx, update)
	}
	return true
}

func (m *mockNotifier) received() []domain.RequestUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RequestUpdate(nil), m.updates...)
}

type mockModels struct {
	mu      sync.Mutex
	calls   []string
	loadFn  func(ctx context.Context) domain.Outcome
	unloads chan struct{}
}

func (m *mockModels) Load(ctx context.Context) domain.Outcome {
	m.record("load")
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return domain.Succeeded()
}

func (m *mockModels) Unload(context.Context) domain.Outcome {
	m.record("unload")
	if m.unloads != nil {
		m.unloads <- struct{}{}
	}
	return domain.Succeeded()
}

func (m *mockModels) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockModels) history() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
