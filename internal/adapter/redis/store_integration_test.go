package redis

import (
	"context"
	"testing"
	"time"

	"github.com/sleepydirt/vision/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WorkItemLifecycle(t *testing.T) {
	client := setupTestClient(t)
	store := NewStore(client)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	item := domain.WorkItem{
		ID:          "1772366400000",
		Status:      domain.WorkProcessing,
		InputDigest: "ab12",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	require.NoError(t, store.PutWorkItem(ctx, item))

	got, err := store.GetWorkItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.WorkProcessing, got.Status)
	assert.True(t, created.Equal(got.CreatedAt))

	item.Status = domain.WorkCompleted
	item.Result = &domain.Result{Success: true, Explanation: "A dog on a beach."}
	item.UpdatedAt = created.Add(3 * time.Second)
	require.NoError(t, store.PutWorkItem(ctx, item))

	got, err = store.GetWorkItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, "A dog on a beach.", got.Result.Explanation)

	// Stored under the legacy hash name, one field per request.
	fields, err := client.HKeys(ctx, "pendingImageRequests").Result()
	require.NoError(t, err)
	assert.Equal(t, []string{item.ID}, fields)
}

func TestStore_GetWorkItem_Missing(t *testing.T) {
	store := NewStore(setupTestClient(t))

	got, err := store.GetWorkItem(context.Background(), "nope")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ListAndDeleteWorkItems(t *testing.T) {
	client := setupTestClient(t)
	store := NewStore(client)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, store.PutWorkItem(ctx, domain.WorkItem{ID: id, Status: domain.WorkProcessing}))
	}
	require.NoError(t, client.HSet(ctx, "pendingImageRequests", "corrupt", "{not json").Err())

	items, err := store.ListWorkItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Contains(t, items, "2")

	require.NoError(t, store.DeleteWorkItems(ctx, "1", "2"))
	require.NoError(t, store.DeleteWorkItems(ctx))

	items, err = store.ListWorkItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Contains(t, items, "3")
}

func TestStore_ViewState(t *testing.T) {
	client := setupTestClient(t)
	store := NewStore(client)
	ctx := context.Background()

	got, err := store.LoadViewState(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := domain.ClientViewState{
		ImageData:    "data:image/png;base64,AAAA",
		RequestID:    "1772366400000",
		IsProcessing: true,
	}
	require.NoError(t, store.SaveViewState(ctx, "default", state))

	exists, err := client.Exists(ctx, "popupState:default").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	got, err = store.LoadViewState(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Awaiting())
	assert.Equal(t, "1772366400000", got.RequestID)

	require.NoError(t, store.ClearViewState(ctx, "default"))
	got, err = store.LoadViewState(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ViewStateIsNormalized(t *testing.T) {
	store := NewStore(setupTestClient(t))
	ctx := context.Background()

	require.NoError(t, store.SaveViewState(ctx, "c", domain.ClientViewState{IsProcessing: true}))

	got, err := store.LoadViewState(ctx, "c")
	require.NoError(t, err)
	assert.False(t, got.IsProcessing)
	assert.Empty(t, got.RequestID)
}

func TestStore_EnabledDefaultsFalse(t *testing.T) {
	store := NewStore(setupTestClient(t))

	enabled, err := store.Enabled(context.Background())

	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestStore_InvalidEnabledFlag(t *testing.T) {
	client := setupTestClient(t)
	store := NewStore(client)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "settings:masterEnabled", "maybe", 0).Err())

	_, err := store.Enabled(ctx)

	assert.Error(t, err)
}

func TestStore_SetEnabledPublishes(t *testing.T) {
	store := NewStore(setupTestClient(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := store.WatchEnabled(ctx)
	require.NoError(t, err)

	require.NoError(t, store.SetEnabled(ctx, true))
	select {
	case enabled := <-changes:
		assert.True(t, enabled)
	case <-time.After(5 * time.Second):
		t.Fatal("no settings change received")
	}

	enabled, err := store.Enabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, store.SetEnabled(ctx, false))
	select {
	case enabled := <-changes:
		assert.False(t, enabled)
	case <-time.After(5 * time.Second):
		t.Fatal("no settings change received")
	}
}

func TestStore_WatchEnabledClosesOnCancel(t *testing.T) {
	store := NewStore(setupTestClient(t))
	ctx, cancel := context.WithCancel(context.Background())

	changes, err := store.WatchEnabled(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, open := <-changes:
		assert.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("watch channel not closed")
	}
}
