package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sleepydirt/vision/internal/adapter/metrics"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/sleepydirt/vision/internal/platform/correlation"
	apperrors "github.com/sleepydirt/vision/internal/platform/errors"
)

const storeWriteTimeout = 5 * time.Second

// workEntry is the coordinator's record of one request. done is closed once
// the item is terminal and persisted.
type workEntry struct {
	item domain.WorkItem
	done chan struct{}
}

// Coordinator owns the WorkItem map. It is the only writer of WorkItems, in
// memory and in the store.
type Coordinator struct {
	session   domain.ResourceSession
	store     domain.WorkItemStore
	notifier  domain.Notifier
	clock     clockwork.Clock
	retention domain.RetentionPolicy
	metrics   *metrics.WorkMetrics

	mu    sync.Mutex
	items map[string]*workEntry

	sweepStopCh chan struct{}
	stopOnce    sync.Once
	sweepWg     sync.WaitGroup
}

// NewCoordinator creates a coordinator with an empty map and starts the
// retention sweep when retention.TTL is set. workMetrics may be nil.
func NewCoordinator(session domain.ResourceSession, store domain.WorkItemStore, notifier domain.Notifier, clock clockwork.Clock, retention domain.RetentionPolicy, workMetrics *metrics.WorkMetrics) *Coordinator {
	c := &Coordinator{
		session:     session,
		store:       store,
		notifier:    notifier,
		clock:       clock,
		retention:   retention,
		metrics:     workMetrics,
		items:       make(map[string]*workEntry),
		sweepStopCh: make(chan struct{}),
	}

	if retention.TTL > 0 {
		c.startSweep()
	}
	return c
}

// Submit records a new processing WorkItem, persists it and starts the work
// in the background. The returned channel yields the terminal item once.
//
// An id that is already known is not started again: a terminal item is
// returned as is, a processing one is joined. An empty id gets a fresh one.
func (c *Coordinator) Submit(ctx context.Context, payload domain.Payload, id string) (domain.WorkItem, <-chan domain.WorkItem, error) {
	if payload.ImageData == "" {
		return domain.WorkItem{}, nil, apperrors.ValidationError("imageData is required")
	}
	if id == "" {
		id = uuid.NewString()
	}

	c.mu.Lock()
	if existing, ok := c.items[id]; ok {
		item := existing.item
		c.mu.Unlock()
		slog.InfoContext(ctx, "Duplicate submission", "request_id", id, "status", string(item.Status))
		return item, c.waitFor(existing), nil
	}

	now := c.clock.Now()
	e := &workEntry{
		item: domain.WorkItem{
			ID:          id,
			Status:      domain.WorkProcessing,
			InputDigest: digest(payload.ImageData),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		done: make(chan struct{}),
	}
	c.items[id] = e
	item := e.item
	c.mu.Unlock()

	c.persist(ctx, item)
	if c.metrics != nil {
		c.metrics.SubmittedTotal.Inc()
		c.metrics.InFlight.Inc()
	}
	slog.InfoContext(ctx, "Work item accepted", "request_id", id)

	go c.run(correlation.Detach(ctx), e, payload)

	return item, c.waitFor(e), nil
}

func (c *Coordinator) waitFor(e *workEntry) <-chan domain.WorkItem {
	ch := make(chan domain.WorkItem, 1)
	go func() {
		<-e.done
		c.mu.Lock()
		item := e.item
		c.mu.Unlock()
		ch <- item
	}()
	return ch
}

func (c *Coordinator) run(ctx context.Context, e *workEntry, payload domain.Payload) {
	id := e.item.ID
	result := domain.Result{Success: false, Error: "internal error"}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Work item panicked", "request_id", id, "panic", r)
			result = domain.Result{Success: false, Error: fmt.Sprintf("internal error: %v", r)}
		}
		c.finish(ctx, e, result)
	}()

	if outcome := c.session.Acquire(ctx); !outcome.Success {
		result = domain.Result{Success: false, Error: "resource unavailable: " + outcome.Error}
		return
	}

	start := c.clock.Now()
	text, err := c.session.Infer(ctx, payload)
	if c.metrics != nil {
		c.metrics.InferenceDuration.Observe(c.clock.Since(start).Seconds())
	}
	if err != nil {
		slog.WarnContext(ctx, "Inference failed", "request_id", id, "error", err)
		result = domain.Result{Success: false, Error: err.Error()}
		return
	}
	result = domain.Result{Success: true, Explanation: text}
}

// finish makes the item terminal, persists it, releases waiters and only
// then pushes the update.
func (c *Coordinator) finish(ctx context.Context, e *workEntry, result domain.Result) {
	c.mu.Lock()
	if e.item.Terminal() {
		c.mu.Unlock()
		return
	}
	e.item.Status = domain.WorkCompleted
	if !result.Success {
		e.item.Status = domain.WorkError
	}
	e.item.Result = &result
	e.item.UpdatedAt = c.clock.Now()
	item := e.item
	c.mu.Unlock()

	c.persist(ctx, item)
	close(e.done)

	if c.metrics != nil {
		c.metrics.InFlight.Dec()
		c.metrics.CompletedTotal.WithLabelValues(string(item.Status)).Inc()
	}

	delivered := c.notifier.Notify(ctx, domain.NewRequestUpdate(item))
	slog.InfoContext(ctx, "Work item finished",
		"request_id", item.ID,
		"status", string(item.Status),
		"delivered", delivered,
	)
}

func (c *Coordinator) persist(ctx context.Context, item domain.WorkItem) {
	writeCtx, cancel := context.WithTimeout(ctx, storeWriteTimeout)
	defer cancel()

	if err := c.store.PutWorkItem(writeCtx, item); err != nil {
		if c.metrics != nil {
			c.metrics.StoreErrors.Inc()
		}
		slog.ErrorContext(ctx, "Failed to persist work item", "request_id", item.ID, "status", string(item.Status), "error", err)
	}
}

// Status reports what the coordinator knows about id. Ids it never saw in
// this process are unknown.
func (c *Coordinator) Status(id string) domain.RequestStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[id]
	if !ok {
		return domain.UnknownRequestStatus()
	}
	return domain.RequestStatusOf(e.item)
}

func (c *Coordinator) GlobalStatus() domain.SessionState {
	return c.session.Status()
}

func (c *Coordinator) Load(ctx context.Context) domain.Outcome {
	return c.session.Acquire(ctx)
}

func (c *Coordinator) Unload(ctx context.Context) domain.Outcome {
	return c.session.Release(ctx)
}

func (c *Coordinator) startSweep() {
	ticker := c.clock.NewTicker(c.retention.SweepInterval)
	c.sweepWg.Add(1)
	go func() {
		defer c.sweepWg.Done()
		for {
			select {
			case <-ticker.Chan():
				c.sweep(correlation.WithID(context.Background(), correlation.NewID()))
			case <-c.sweepStopCh:
				ticker.Stop()
				return
			}
		}
	}()
	slog.Info("Work item retention sweep started", "ttl", c.retention.TTL, "interval", c.retention.SweepInterval)
}

// sweep evicts terminal items whose last update is older than the TTL.
// Processing items are never evicted.
func (c *Coordinator) sweep(ctx context.Context) {
	cutoff := c.clock.Now().Add(-c.retention.TTL)

	c.mu.Lock()
	var expired []string
	for id, e := range c.items {
		if e.item.Terminal() && e.item.UpdatedAt.Before(cutoff) {
			expired = append(expired, id)
			delete(c.items, id)
		}
	}
	c.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	if err := c.store.DeleteWorkItems(ctx, expired...); err != nil {
		slog.ErrorContext(ctx, "Failed to evict work items from store", "count", len(expired), "error", err)
	}
	if c.metrics != nil {
		c.metrics.EvictedTotal.Add(float64(len(expired)))
	}
	slog.InfoContext(ctx, "Evicted expired work items", "count", len(expired))
}

// Stop ends the retention sweep. Work already running is left to finish.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.sweepStopCh)
	})
	c.sweepWg.Wait()
}

func digest(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
