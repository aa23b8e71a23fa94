package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sleepydirt/vision/internal/domain"
)

// User-facing texts shown by the client view.
const (
	TextUnknownRequest  = "Request status unknown. Try again."
	TextTimedOut        = "Request timed out. Try again."
	TextModelLoading    = "Please wait, model is still loading..."
	TextFailedToProcess = "Failed to process image"

	TextModelLoaded     = "Model: Loaded"
	TextModelLoadingNow = "Model: Loading..."
	TextModelRetrying   = "Model: Retrying (%d/%d)..."
	TextModelFailed     = "Model: Failed to load"
	TextModelNotLoaded  = "Model: Not loaded"
)

var (
	ErrTimedOut   = errors.New("timed out waiting for result")
	ErrLoadFailed = errors.New("model failed to load")
)

// MessageChannel is the client side of the coordinator's message channel.
type MessageChannel interface {
	CheckModelStatus(ctx context.Context) (domain.ModelStatus, error)
	LoadModel(ctx context.Context) (domain.Outcome, error)
	UnloadModel(ctx context.Context) (domain.Outcome, error)
	ExplainImage(ctx context.Context, imageData, requestID string) (domain.Result, error)
	CheckRequestStatus(ctx context.Context, requestID string) (domain.RequestStatus, error)
	Subscribe(ctx context.Context) (<-chan domain.RequestUpdate, error)
}

// Store is what a client view reads and writes. WorkItems are read-only
// from this side.
type Store interface {
	GetWorkItem(ctx context.Context, id string) (*domain.WorkItem, error)
	ListWorkItems(ctx context.Context) (map[string]domain.WorkItem, error)
	domain.ViewStateStore
	domain.SettingsStore
}

type Config struct {
	ClientID              string
	PollInterval          time.Duration
	PollTimeout           time.Duration // 0 polls until the request settles
	LoadMaxAttempts       int
	LoadRetryDelay        time.Duration
	StatusRecheckInterval time.Duration
}

// LoadPhase is the controller's view of the model load it drives.
type LoadPhase int

const (
	LoadIdle LoadPhase = iota
	LoadLoading
	LoadLoaded
	LoadFailed
)

func (p LoadPhase) String() string {
	switch p {
	case LoadIdle:
		return "idle"
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	case LoadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reconciliation is the result of comparing a restored view with the
// coordinator's record of its in-flight request.
type Reconciliation string

const (
	ReconcileIdle      Reconciliation = "idle"
	ReconcileCompleted Reconciliation = "completed"
	ReconcileAwaiting  Reconciliation = "awaiting"
	ReconcileUnknown   Reconciliation = "unknown"
)

// StatusObserver receives the model status line whenever it changes.
type StatusObserver func(text string)

type Controller struct {
	cfg      Config
	channel  MessageChannel
	store    Store
	clock    clockwork.Clock
	observer StatusObserver

	mu         sync.Mutex
	view       domain.ClientViewState
	items      map[string]domain.WorkItem
	phase      LoadPhase
	cancelLoad context.CancelFunc
	loadSeq    uint64
}

const (
	defaultPollInterval          = time.Second
	defaultLoadMaxAttempts       = 3
	defaultLoadRetryDelay        = 2 * time.Second
	defaultStatusRecheckInterval = 1500 * time.Millisecond
)

// NewController creates a controller for one activation. Zero intervals and
// attempts take their defaults. observer may be nil.
func NewController(cfg Config, channel MessageChannel, store Store, clock clockwork.Clock, observer StatusObserver) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.LoadMaxAttempts < 1 {
		cfg.LoadMaxAttempts = defaultLoadMaxAttempts
	}
	if cfg.LoadRetryDelay <= 0 {
		cfg.LoadRetryDelay = defaultLoadRetryDelay
	}
	if cfg.StatusRecheckInterval <= 0 {
		cfg.StatusRecheckInterval = defaultStatusRecheckInterval
	}
	if observer == nil {
		observer = func(string) {}
	}
	return &Controller{
		cfg:      cfg,
		channel:  channel,
		store:    store,
		clock:    clock,
		observer: observer,
	}
}

// View returns a copy of the current view state.
func (c *Controller) View() domain.ClientViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) Phase() LoadPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Restore reads the persisted view and, when it was waiting on a request,
// the coordinator's WorkItem records.
func (c *Controller) Restore(ctx context.Context) (domain.ClientViewState, error) {
	saved, err := c.store.LoadViewState(ctx, c.cfg.ClientID)
	if err != nil {
		return domain.ClientViewState{}, fmt.Errorf("restore view state: %w", err)
	}

	var view domain.ClientViewState
	if saved != nil {
		view = *saved
	}
	view.Normalize()

	var items map[string]domain.WorkItem
	if view.Awaiting() {
		items, err = c.store.ListWorkItems(ctx)
		if err != nil {
			return domain.ClientViewState{}, fmt.Errorf("restore work items: %w", err)
		}
	}

	c.mu.Lock()
	c.view = view
	c.items = items
	c.mu.Unlock()

	return view, nil
}

// Reconcile settles a restored in-flight request against the records read by
// Restore. Only ReconcileAwaiting needs a follow-up Await.
func (c *Controller) Reconcile(ctx context.Context) (Reconciliation, error) {
	c.mu.Lock()
	view := c.view
	item, found := c.items[view.RequestID]
	c.mu.Unlock()

	if !view.Awaiting() {
		return ReconcileIdle, nil
	}

	switch {
	case found && item.Terminal():
		if _, err := c.finishRequest(ctx, view.RequestID, item.Result); err != nil {
			return ReconcileCompleted, err
		}
		return ReconcileCompleted, nil
	case found:
		return ReconcileAwaiting, nil
	default:
		slog.InfoContext(ctx, "In-flight request not found", "request_id", view.RequestID)
		if _, err := c.abandonRequest(ctx, view.RequestID, TextUnknownRequest); err != nil {
			return ReconcileUnknown, err
		}
		return ReconcileUnknown, nil
	}
}

// Resume restores the view and, if it was waiting on a request, finishes
// waiting for it.
func (c *Controller) Resume(ctx context.Context) (domain.ClientViewState, Reconciliation, error) {
	view, err := c.Restore(ctx)
	if err != nil {
		return view, ReconcileIdle, err
	}

	outcome, err := c.Reconcile(ctx)
	if err != nil || outcome != ReconcileAwaiting {
		return c.View(), outcome, err
	}

	view, err = c.Await(ctx, view.RequestID)
	return view, outcome, err
}

// Reset clears the persisted view.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.view = domain.ClientViewState{}
	c.mu.Unlock()

	if err := c.store.ClearViewState(ctx, c.cfg.ClientID); err != nil {
		return fmt.Errorf("reset view state: %w", err)
	}
	return nil
}

// finishRequest applies a terminal result to the view if it is still
// waiting on id, then saves it.
func (c *Controller) finishRequest(ctx context.Context, id string, result *domain.Result) (domain.ClientViewState, error) {
	c.mu.Lock()
	if c.view.RequestID != id {
		view := c.view
		c.mu.Unlock()
		return view, nil
	}

	switch {
	case result != nil && result.Success:
		c.view.Explanation = result.Explanation
		c.view.Error = ""
	case result != nil && result.Error != "":
		c.view.Explanation = ""
		c.view.Error = result.Error
	default:
		c.view.Explanation = ""
		c.view.Error = TextFailedToProcess
	}
	c.view.IsProcessing = false
	c.view.RequestID = ""
	c.mu.Unlock()

	return c.save(ctx)
}

// abandonRequest stops waiting on id and shows reason instead of a result.
func (c *Controller) abandonRequest(ctx context.Context, id, reason string) (domain.ClientViewState, error) {
	c.mu.Lock()
	if c.view.RequestID != id {
		view := c.view
		c.mu.Unlock()
		return view, nil
	}
	c.view.Explanation = ""
	c.view.Error = reason
	c.view.IsProcessing = false
	c.view.RequestID = ""
	c.mu.Unlock()

	return c.save(ctx)
}

func (c *Controller) save(ctx context.Context) (domain.ClientViewState, error) {
	c.mu.Lock()
	c.view.UpdatedAt = c.clock.Now()
	c.view.Normalize()
	view := c.view
	c.mu.Unlock()

	if err := c.store.SaveViewState(ctx, c.cfg.ClientID, view); err != nil {
		return view, fmt.Errorf("save view state: %w", err)
	}
	return view, nil
}
