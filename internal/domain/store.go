package domain

import (
	"context"
	"time"
)

// WorkItemStore is the durable mirror of the coordinator's WorkItem map.
// Only the coordinator writes to it. GetWorkItem returns nil, nil for an
// unknown id.
type WorkItemStore interface {
	PutWorkItem(ctx context.Context, item WorkItem) error
	GetWorkItem(ctx context.Context, id string) (*WorkItem, error)
	ListWorkItems(ctx context.Context) (map[string]WorkItem, error)
	DeleteWorkItems(ctx context.Context, ids ...string) error
}

// ViewStateStore persists ClientViewState per client view. LoadViewState
// returns nil, nil when nothing was saved.
type ViewStateStore interface {
	LoadViewState(ctx context.Context, clientID string) (*ClientViewState, error)
	SaveViewState(ctx context.Context, clientID string, state ClientViewState) error
	ClearViewState(ctx context.Context, clientID string) error
}

// SettingsStore holds the persisted enabled flag and announces changes to it.
type SettingsStore interface {
	Enabled(ctx context.Context) (bool, error)
	SetEnabled(ctx context.Context, enabled bool) error
	WatchEnabled(ctx context.Context) (<-chan bool, error)
}

// Store bundles every record kind the durable store holds.
type Store interface {
	WorkItemStore
	ViewStateStore
	SettingsStore
	Ping(ctx context.Context) error
}

// RetentionPolicy controls eviction of terminal WorkItems. Zero TTL keeps
// items forever.
type RetentionPolicy struct {
	TTL           time.Duration
	SweepInterval time.Duration
}
