package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/cache"
	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/queue"
	"github.com/fyrsmithlabs/listsync/internal/retry"
	"github.com/fyrsmithlabs/listsync/internal/syncerr"
)

// LoadResult is the outcome of Load.
type LoadResult struct {
	Items     []item.Item
	FromCache bool
	// SavedAt is when the cached copy was written; zero for remote loads.
	SavedAt time.Time
	Pending int
	// Notice is set when the list came from the cache.
	Notice *Notice
}

// Load fetches the list for scope. Online, the remote list replaces the
// cache; items with queued changes keep their local version. Offline, or
// if the fetch fails, the cached list is returned with a cached-data notice
// and no error.
func (e *Engine) Load(ctx context.Context, scope item.Scope) (LoadResult, error) {
	ctx, span := e.startSpan(ctx, "Load", scopeAttrs(scope)...)
	defer span.End()

	if err := scope.Validate(); err != nil {
		return LoadResult{}, &MutationError{Op: "load", Classification: syncerr.Classify(localError(err)), Err: localError(err)}
	}
	q, err := e.queues.Get(ctx, scope)
	if err != nil {
		return LoadResult{}, err
	}
	logger := e.logger.With(zap.String("scope", scope.String()))

	var cause *syncerr.Classification
	if e.conn.IsOnline() {
		e.seedFromCache(ctx, scope)
		remoteItems, err := retry.Do(ctx, e.retry, "list", func(ctx context.Context) ([]item.Item, error) {
			return e.remote.List(ctx, scope)
		})
		if err == nil {
			items := e.mergeRemote(scope, remoteItems, q)
			e.persist(ctx, scope)
			loadsTotal.WithLabelValues("remote").Inc()
			span.SetAttributes(attribute.String("listsync.source", "remote"))
			return LoadResult{Items: items, Pending: q.Len()}, nil
		}
		c := syncerr.Classify(err)
		cause = &c
		errorsTotal.WithLabelValues(string(c.Kind)).Inc()
		logger.Warn("remote load failed, using cache", zap.String("kind", string(c.Kind)), zap.Error(err))
	}

	snap, err := e.cache.Load(ctx, scope)
	if err != nil {
		logger.Warn("cache load failed", zap.Error(err))
		snap = cache.Snapshot{}
	}
	e.update(scope, func(item.List) item.List { return item.NewList(snap.Items) })

	loadsTotal.WithLabelValues("cache").Inc()
	span.SetAttributes(attribute.String("listsync.source", "cache"))

	notice := cachedDataNotice(scope, q.Len(), cause)
	e.notify(notice)
	return LoadResult{
		Items:     e.Items(scope),
		FromCache: true,
		SavedAt:   snap.SavedAt,
		Pending:   q.Len(),
		Notice:    &notice,
	}, nil
}

// seedFromCache installs the cached list for a scope not yet held in
// memory, so queued local items survive a restart.
func (e *Engine) seedFromCache(ctx context.Context, scope item.Scope) {
	e.mu.Lock()
	_, loaded := e.lists[scope]
	e.mu.Unlock()
	if loaded {
		return
	}
	snap, err := e.cache.Load(ctx, scope)
	if err != nil || !snap.Found {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, loaded := e.lists[scope]; !loaded {
		e.lists[scope] = item.NewList(snap.Items)
	}
}

// mergeRemote installs the remote list for scope. Items from another scope
// are dropped. Local items with queued operations or an in-flight call win
// over the remote copy; items with a queued delete stay hidden.
func (e *Engine) mergeRemote(scope item.Scope, remoteItems []item.Item, q *queue.Queue) []item.Item {
	pendingTargets := make(map[string]bool)
	pendingDeletes := make(map[string]bool)
	for _, op := range q.Pending() {
		pendingTargets[op.TargetID] = true
		if op.Type == item.OpDelete {
			pendingDeletes[op.TargetID] = true
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	local := e.lists[scope]

	keepLocal := func(it item.Item) bool {
		return it.Sync.IsOptimistic() || pendingTargets[it.ID]
	}

	var merged []item.Item
	for _, it := range remoteItems {
		if !it.InScope(scope) {
			e.logger.Warn("dropping item from another scope",
				zap.String("item_id", it.ID),
				zap.String("item_scope", it.Scope.String()),
				zap.String("scope", scope.String()))
			continue
		}
		if pendingDeletes[it.ID] {
			continue
		}
		if l, ok := local.Get(it.ID); ok && keepLocal(l) {
			merged = append(merged, l)
			continue
		}
		merged = append(merged, it)
	}

	next := item.NewList(merged)
	localOnly := local.Filter(func(l item.Item) bool {
		_, fromRemote := next.Get(l.ID)
		return !fromRemote && !pendingDeletes[l.ID] && keepLocal(l)
	})
	for _, l := range localOnly.Items() {
		next = next.With(l)
	}
	e.lists[scope] = next
	return next.Items()
}
