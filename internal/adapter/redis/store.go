package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sleepydirt/vision/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Key layout:
//
//	pendingImageRequests      hash  requestId -> WorkItem JSON
//	popupState:{clientID}     string ClientViewState JSON
//	settings:masterEnabled    string "true" | "false"
//	settings:changed          pub/sub channel, payload "true" | "false"
const (
	workItemsKey        = "pendingImageRequests"
	viewStateKeyPrefix  = "popupState:"
	enabledKey          = "settings:masterEnabled"
	settingsChangedChan = "settings:changed"
)

// Store is the Redis-backed domain.Store. Each WorkItem is its own hash field
// so concurrent writers never rewrite each other's records.
type Store struct {
	rdb *goredis.Client
}

var _ domain.Store = (*Store)(nil)

func NewStore(rdb *goredis.Client) *Store {
	return &Store{rdb: rdb}
}

func viewStateKey(clientID string) string {
	return viewStateKeyPrefix + clientID
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) PutWorkItem(ctx context.Context, item domain.WorkItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal work item: %w", err)
	}
	if err := s.rdb.HSet(ctx, workItemsKey, item.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to store work item %s: %w", item.ID, err)
	}
	return nil
}

func (s *Store) GetWorkItem(ctx context.Context, id string) (*domain.WorkItem, error) {
	data, err := s.rdb.HGet(ctx, workItemsKey, id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read work item %s: %w", id, err)
	}

	var item domain.WorkItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work item %s: %w", id, err)
	}
	return &item, nil
}

// ListWorkItems returns the whole map. Entries that fail to decode are
// skipped with a warning.
func (s *Store) ListWorkItems(ctx context.Context) (map[string]domain.WorkItem, error) {
	raw, err := s.rdb.HGetAll(ctx, workItemsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}

	items := make(map[string]domain.WorkItem, len(raw))
	for id, data := range raw {
		var item domain.WorkItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			slog.Warn("Skipping corrupt work item", "request_id", id, "error", err)
			continue
		}
		items[id] = item
	}
	return items, nil
}

func (s *Store) DeleteWorkItems(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.rdb.HDel(ctx, workItemsKey, ids...).Err(); err != nil {
		return fmt.Errorf("failed to delete work items: %w", err)
	}
	return nil
}

func (s *Store) LoadViewState(ctx context.Context, clientID string) (*domain.ClientViewState, error) {
	data, err := s.rdb.Get(ctx, viewStateKey(clientID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read view state: %w", err)
	}

	var state domain.ClientViewState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal view state: %w", err)
	}
	return &state, nil
}

func (s *Store) SaveViewState(ctx context.Context, clientID string, state domain.ClientViewState) error {
	state.Normalize()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal view state: %w", err)
	}
	if err := s.rdb.Set(ctx, viewStateKey(clientID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save view state: %w", err)
	}
	return nil
}

func (s *Store) ClearViewState(ctx context.Context, clientID string) error {
	if err := s.rdb.Del(ctx, viewStateKey(clientID)).Err(); err != nil {
		return fmt.Errorf("failed to clear view state: %w", err)
	}
	return nil
}

func (s *Store) Enabled(ctx context.Context) (bool, error) {
	val, err := s.rdb.Get(ctx, enabledKey).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read enabled flag: %w", err)
	}
	enabled, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid enabled flag %q: %w", val, err)
	}
	return enabled, nil
}

// SetEnabled writes the flag and announces it in one MULTI/EXEC block.
func (s *Store) SetEnabled(ctx context.Context, enabled bool) error {
	val := strconv.FormatBool(enabled)
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, enabledKey, val, 0)
		pipe.Publish(ctx, settingsChangedChan, val)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set enabled flag: %w", err)
	}
	return nil
}

// WatchEnabled subscribes to flag changes. The subscription is confirmed
// before returning, so a SetEnabled issued afterwards is always seen. The
// channel is closed when ctx ends.
func (s *Store) WatchEnabled(ctx context.Context) (<-chan bool, error) {
	pubsub := s.rdb.Subscribe(ctx, settingsChangedChan)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to settings changes: %w", err)
	}

	out := make(chan bool, 1)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		ch := pubsub.Channel()
		for {
			select {
			case msg := <-ch:
				if msg == nil {
					return
				}
				enabled, err := strconv.ParseBool(msg.Payload)
				if err != nil {
					slog.Warn("Ignoring malformed settings change", "payload", msg.Payload)
					continue
				}
				select {
				case out <- enabled:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
