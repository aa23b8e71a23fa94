package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sleepydirt/vision/internal/domain"
)

// --- Mock implementations ---

type mockChannel struct {
	checkModelStatusFn   func(ctx context.Context) (domain.ModelStatus, error)
	loadModelFn          func(ctx context.Context) (domain.Outcome, error)
	unloadModelFn        func(ctx context.Context) (domain.Outcome, error)
	explainImageFn       func(ctx context.Context, imageData, requestID string) (domain.Result, error)
	checkRequestStatusFn func(ctx context.Context, requestID string) (domain.RequestStatus, error)
	subscribeFn          func(ctx context.Context) (<-chan domain.RequestUpdate, error)

	loads      atomic.Int32
	unloads    atomic.Int32
	explains   atomic.Int32
	subscribes atomic.Int32
}

func (m *mockChannel) CheckModelStatus(ctx context.Context) (domain.ModelStatus, error) {
	if m.checkModelStatusFn != nil {
		return m.checkModelStatusFn(ctx)
	}
	return "", fmt.Errorf("not implemented")
}

func (m *mockChannel) LoadModel(ctx context.Context) (domain.Outcome, error) {
	m.loads.Add(1)
	if m.loadModelFn != nil {
		return m.loadModelFn(ctx)
	}
	return domain.Outcome{}, fmt.Errorf("not implemented")
}

func (m *mockChannel) UnloadModel(ctx context.Context) (domain.Outcome, error) {
	m.unloads.Add(1)
	if m.unloadModelFn != nil {
		return m.unloadModelFn(ctx)
	}
	return domain.Outcome{}, fmt.Errorf("not implemented")
}

func (m *mockChannel) ExplainImage(ctx context.Context, imageData, requestID string) (domain.Result, error) {
	m.explains.Add(1)
	if m.explainImageFn != nil {
		return m.explainImageFn(ctx, imageData, requestID)
	}
	return domain.Result{}, fmt.Errorf("not implemented")
}

func (m *mockChannel) CheckRequestStatus(ctx context.Context, requestID string) (domain.RequestStatus, error) {
	if m.checkRequestStatusFn != nil {
		return m.checkRequestStatusFn(ctx, requestID)
	}
	return domain.RequestStatus{}, fmt.Errorf("not implemented")
}

func (m *mockChannel) Subscribe(ctx context.Context) (<-chan domain.RequestUpdate, error) {
	m.subscribes.Add(1)
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

// statusText collects observer output.
type statusText struct {
	mu    sync.Mutex
	lines []string
}

func (s *statusText) observe(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
}

func (s *statusText) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func modelStatus(status domain.ModelStatus) func(context.Context) (domain.ModelStatus, error) {
	return func(context.Context) (domain.ModelStatus, error) { return status, nil }
}

// pushed returns a subscription that already holds updates and then stays
// open until ctx ends.
func pushed(updates ...domain.RequestUpdate) func(context.Context) (<-chan domain.RequestUpdate, error) {
	return func(ctx context.Context) (<-chan domain.RequestUpdate, error) {
		ch := make(chan domain.RequestUpdate, len(updates))
		for _, u := range updates {
			ch <- u
		}
		return ch, nil
	}
}

func noPush(context.Context) (<-chan domain.RequestUpdate, error) {
	return nil, fmt.Errorf("dial tcp: connection refused")
}
