// Package memory provides a process-local domain.Store for single-instance
// and development use. Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/sleepydirt/vision/internal/domain"
)

// Store keeps every record in maps guarded by one mutex. Records are copied
// on the way in and out so callers never share memory with the store.
type Store struct {
	mu       sync.RWMutex
	items    map[string]domain.WorkItem
	views    map[string]domain.ClientViewState
	enabled  bool
	watchers map[chan bool]struct{}
}

var _ domain.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		items:    make(map[string]domain.WorkItem),
		views:    make(map[string]domain.ClientViewState),
		watchers: make(map[chan bool]struct{}),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) PutWorkItem(_ context.Context, item domain.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = copyItem(item)
	return nil
}

func (s *Store) GetWorkItem(_ context.Context, id string) (*domain.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	c := copyItem(item)
	return &c, nil
}

func (s *Store) ListWorkItems(context.Context) (map[string]domain.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.WorkItem, len(s.items))
	for id, item := range s.items {
		out[id] = copyItem(item)
	}
	return out, nil
}

func (s *Store) DeleteWorkItems(_ context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.items, id)
	}
	return nil
}

func (s *Store) LoadViewState(_ context.Context, clientID string) (*domain.ClientViewState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[clientID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *Store) SaveViewState(_ context.Context, clientID string, state domain.ClientViewState) error {
	state.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[clientID] = state
	return nil
}

func (s *Store) ClearViewState(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, clientID)
	return nil
}

func (s *Store) Enabled(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled, nil
}

// SetEnabled stores the flag and notifies watchers. A watcher that has not
// drained its previous notification misses this one.
func (s *Store) SetEnabled(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	for ch := range s.watchers {
		select {
		case ch <- enabled:
		default:
		}
	}
	return nil
}

// WatchEnabled returns a channel of flag changes. It is closed when ctx ends.
func (s *Store) WatchEnabled(ctx context.Context) (<-chan bool, error) {
	ch := make(chan bool, 1)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

func copyItem(item domain.WorkItem) domain.WorkItem {
	if item.Result != nil {
		r := *item.Result
		item.Result = &r
	}
	return item
}
