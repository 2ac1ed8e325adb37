// Package cache persists the last known list for each scope and refuses to
// return data that belongs to a different user or list.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/store"
)

const keyPrefix = "cache:"

var purgesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "listsync",
		Subsystem: "cache",
		Name:      "purges_total",
		Help:      "Total number of cache records discarded on read",
	},
	[]string{"reason"},
)

// Key returns the store key for scope. The key is per list on the device;
// the record itself carries the owning user.
func Key(s item.Scope) string {
	return keyPrefix + s.ListID
}

// Snapshot is the result of a cache read.
type Snapshot struct {
	Items   []item.Item
	SavedAt time.Time
	Found   bool
}

// Cache reads and writes CacheRecords through a store.KV.
type Cache struct {
	kv     store.KV
	logger *zap.Logger
	now    func() time.Time
}

// New creates a cache over kv.
func New(kv store.KV, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{kv: kv, logger: logger, now: time.Now}
}

// Load returns the cached items for scope. A record that fails to decode,
// or whose owner or any item does not match scope, is deleted and an empty
// snapshot is returned.
func (c *Cache) Load(ctx context.Context, scope item.Scope) (Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("cache: %w", err)
	}
	key := Key(scope)

	data, err := c.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("cache: load %s: %w", scope, err)
	}

	var rec item.CacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		c.purge(ctx, key, "corrupt", zap.Error(err))
		return Snapshot{}, nil
	}
	if !rec.Matches(scope) {
		c.purge(ctx, key, "scope_mismatch",
			zap.String("requested_user", scope.UserID),
			zap.String("requested_list", scope.ListID),
			zap.String("record_user", rec.UserID),
			zap.String("record_list", rec.ListID))
		return Snapshot{}, nil
	}

	return Snapshot{
		Items:   normalize(rec.Items),
		SavedAt: rec.SavedAt,
		Found:   true,
	}, nil
}

// Save replaces the record for scope.
func (c *Cache) Save(ctx context.Context, scope item.Scope, items []item.Item) error {
	if err := scope.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if items == nil {
		items = []item.Item{}
	}
	rec := item.CacheRecord{
		Items:   items,
		UserID:  scope.UserID,
		ListID:  scope.ListID,
		SavedAt: c.now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", scope, err)
	}
	if err := c.kv.Put(ctx, Key(scope), data); err != nil {
		return fmt.Errorf("cache: save %s: %w", scope, err)
	}
	return nil
}

// Clear deletes the record for scope.
func (c *Cache) Clear(ctx context.Context, scope item.Scope) error {
	if err := c.kv.Delete(ctx, Key(scope)); err != nil {
		return fmt.Errorf("cache: clear %s: %w", scope, err)
	}
	return nil
}

func (c *Cache) purge(ctx context.Context, key, reason string, fields ...zap.Field) {
	purgesTotal.WithLabelValues(reason).Inc()
	c.logger.Warn("cache: discarding record",
		append([]zap.Field{zap.String("key", key), zap.String("reason", reason)}, fields...)...)
	if err := c.kv.Delete(ctx, key); err != nil {
		c.logger.Error("cache: purge failed", zap.String("key", key), zap.Error(err))
	}
}

// normalize settles tags left by a process that stopped with remote calls
// in flight. Unacknowledged creates are dropped; other optimistic items
// revert to clean.
func normalize(items []item.Item) []item.Item {
	out := make([]item.Item, 0, len(items))
	for _, it := range items {
		if it.Sync.IsOptimistic() {
			if it.Sync.Action == item.ActionCreating {
				continue
			}
			it.Sync = item.Clean()
		}
		out = append(out, it)
	}
	return out
}
