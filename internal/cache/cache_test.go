package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/store"
)

var (
	u1c1 = item.Scope{UserID: "u1", ListID: "c1"}
	u2c1 = item.Scope{UserID: "u2", ListID: "c1"}
)

func newTestCache(t *testing.T) (*Cache, *store.MemoryStore) {
	t.Helper()
	kv := store.NewMemoryStore()
	c := New(kv, zap.NewNop())
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c, kv
}

func TestCache_SaveLoad(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	items := []item.Item{
		{ID: "a", Scope: u1c1, Text: "milk", Priority: item.PriorityMedium, Sync: item.Clean()},
		{ID: "tmp-1", Scope: u1c1, Text: "eggs", Priority: item.PriorityLow, Sync: item.NeedsSync()},
	}
	require.NoError(t, c.Save(ctx, u1c1, items))

	snap, err := c.Load(ctx, u1c1)
	require.NoError(t, err)
	assert.True(t, snap.Found)
	assert.Equal(t, items, snap.Items)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), snap.SavedAt)
}

func TestCache_MissingRecordIsEmpty(t *testing.T) {
	c, _ := newTestCache(t)

	snap, err := c.Load(context.Background(), u1c1)
	require.NoError(t, err)
	assert.False(t, snap.Found)
	assert.Empty(t, snap.Items)
}

func TestCache_ForeignUserRecordIsPurged(t *testing.T) {
	c, kv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, u2c1, []item.Item{{ID: "x", Scope: u2c1, Text: "theirs"}}))

	snap, err := c.Load(ctx, u1c1)
	require.NoError(t, err)
	assert.False(t, snap.Found)
	assert.Empty(t, snap.Items)

	_, err = kv.Get(ctx, Key(u1c1))
	assert.ErrorIs(t, err, store.ErrNotFound, "mismatched record must be removed")
}

func TestCache_ForeignItemPurgesRecord(t *testing.T) {
	c, kv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, u1c1, []item.Item{
		{ID: "a", Scope: u1c1, Text: "mine"},
		{ID: "b", Scope: u2c1, Text: "leaked"},
	}))

	snap, err := c.Load(ctx, u1c1)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)

	_, err = kv.Get(ctx, Key(u1c1))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCache_CorruptRecordIsPurged(t *testing.T) {
	c, kv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, Key(u1c1), []byte("{not json")))

	snap, err := c.Load(ctx, u1c1)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)

	_, err = kv.Get(ctx, Key(u1c1))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCache_NormalizesInFlightTags(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, u1c1, []item.Item{
		{ID: "tmp-1", Scope: u1c1, Text: "never acked", Sync: item.Optimistic(item.ActionCreating)},
		{ID: "a", Scope: u1c1, Text: "edited", Sync: item.Optimistic(item.ActionUpdating)},
		{ID: "b", Scope: u1c1, Text: "queued", Sync: item.NeedsSync()},
	}))

	snap, err := c.Load(ctx, u1c1)
	require.NoError(t, err)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "a", snap.Items[0].ID)
	assert.True(t, snap.Items[0].Sync.IsClean())
	assert.True(t, snap.Items[1].Sync.IsNeedsSync())
}

func TestCache_Clear(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, u1c1, nil))
	require.NoError(t, c.Clear(ctx, u1c1))

	snap, err := c.Load(ctx, u1c1)
	require.NoError(t, err)
	assert.False(t, snap.Found)
}

func TestCache_InvalidScope(t *testing.T) {
	c, _ := newTestCache(t)
	_, err := c.Load(context.Background(), item.Scope{UserID: "u1"})
	assert.ErrorIs(t, err, item.ErrInvalidScope)
}
