package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/optimistic"
	"github.com/fyrsmithlabs/listsync/internal/queue"
	"github.com/fyrsmithlabs/listsync/internal/retry"
)

// AddItem creates an item in scope with the default priority.
func (e *Engine) AddItem(ctx context.Context, scope item.Scope, text string) (item.Item, error) {
	return e.AddItemWithPriority(ctx, scope, text, "")
}

// AddItemWithPriority creates an item. The item appears immediately with a
// temporary id. Online, it is replaced by the service's canonical item, or
// removed again if the call fails; the returned *MutationError then carries
// the submitted text in RestoreText. Offline, the create is queued and the
// item is returned tagged NeedsSync.
func (e *Engine) AddItemWithPriority(ctx context.Context, scope item.Scope, text string, priority item.Priority) (item.Item, error) {
	ctx, span := e.startSpan(ctx, "AddItem", scopeAttrs(scope)...)
	defer span.End()

	e.mu.Lock()
	next, tmp, err := optimistic.Apply(e.lists[scope], optimistic.Create(scope, text, priority), e.now())
	if err != nil {
		e.mu.Unlock()
		mutationsTotal.WithLabelValues("add", "rejected").Inc()
		return item.Item{}, newMutationError("add", "", text, localError(err))
	}
	e.lists[scope] = next
	e.mu.Unlock()
	e.persist(ctx, scope)

	drop := func() {
		e.update(scope, func(l item.List) item.List { return optimistic.Remove(l, tmp.ID) })
		e.persist(ctx, scope)
	}

	q, err := e.queues.Get(ctx, scope)
	if err != nil {
		drop()
		return item.Item{}, newMutationError("add", "", text, err)
	}

	if !e.conn.IsOnline() {
		op := item.PendingOperation{
			Type:     item.OpCreate,
			TargetID: tmp.ID,
			Payload:  item.Payload{Text: text, Priority: tmp.Priority},
		}
		return e.deferOp(ctx, "add", scope, q, tmp, op, text, drop)
	}

	created, err := retry.Do(ctx, e.retry, "create", func(ctx context.Context) (item.Item, error) {
		return e.remote.Create(ctx, scope, text, tmp.Priority)
	})
	if err != nil {
		drop()
		c := e.surface(scope, err)
		mutationsTotal.WithLabelValues("add", "reverted").Inc()
		return item.Item{}, &MutationError{Op: "add", Classification: c, RestoreText: text, Err: err}
	}

	e.update(scope, func(l item.List) item.List { return optimistic.Reconcile(l, tmp.ID, created) })
	e.persist(ctx, scope)
	mutationsTotal.WithLabelValues("add", "synced").Inc()

	created.Sync = item.Clean()
	return created, nil
}

// ToggleItem flips an item's completed flag.
func (e *Engine) ToggleItem(ctx context.Context, id string) (item.Item, error) {
	return e.mutate(ctx, "toggle", optimistic.Toggle(id), item.OpToggle,
		func(ctx context.Context) (item.Item, error) { return e.remote.Toggle(ctx, id) })
}

// EditItem replaces an item's text. Empty or over-long text is rejected
// before any network call.
func (e *Engine) EditItem(ctx context.Context, id, text string) (item.Item, error) {
	return e.mutate(ctx, "edit", optimistic.Update(id, text), item.OpUpdate,
		func(ctx context.Context) (item.Item, error) { return e.remote.Update(ctx, id, text) })
}

// mutate runs the toggle and edit lifecycles. An item that already has
// queued operations is queued behind them even while online, so replay
// order matches the order the user acted in.
func (e *Engine) mutate(ctx context.Context, label string, in optimistic.Intent, opType item.OpType, call func(context.Context) (item.Item, error)) (item.Item, error) {
	ctx, span := e.startSpan(ctx, label)
	defer span.End()

	scope, orig, applied, err := e.applyToExisting(in)
	if err != nil {
		mutationsTotal.WithLabelValues(label, "rejected").Inc()
		return item.Item{}, newMutationError(label, in.ID, "", localError(err))
	}
	e.persist(ctx, scope)
	restore := func() {
		e.restore(scope, orig)
		e.persist(ctx, scope)
	}

	q, err := e.queues.Get(ctx, scope)
	if err != nil {
		restore()
		return item.Item{}, newMutationError(label, in.ID, "", err)
	}

	if online, queued := e.conn.IsOnline(), e.hasQueued(q, orig); !online || queued {
		op := item.PendingOperation{
			Type:     opType,
			TargetID: orig.ID,
			Payload:  item.Payload{Text: in.Text},
		}
		it, err := e.deferOp(ctx, label, scope, q, applied, op, "", restore)
		if err != nil || !online {
			return it, err
		}
		report, err := e.flush(ctx, scope)
		if err != nil {
			e.logger.Warn("flush after queued mutation failed", zap.String("scope", scope.String()), zap.Error(err))
		}
		id := orig.ID
		if mapped, ok := report.IDMap[id]; ok {
			id = mapped
		}
		if cur, ok := e.Item(id); ok {
			return cur, nil
		}
		return it, nil
	}

	updated, err := retry.Do(ctx, e.retry, label, call)
	if err != nil {
		restore()
		c := e.surface(scope, err)
		mutationsTotal.WithLabelValues(label, "reverted").Inc()
		return item.Item{}, &MutationError{Op: label, ItemID: orig.ID, Classification: c, Err: err}
	}

	e.update(scope, func(l item.List) item.List { return optimistic.Reconcile(l, orig.ID, updated) })
	e.persist(ctx, scope)
	mutationsTotal.WithLabelValues(label, "synced").Inc()

	updated.Sync = item.Clean()
	return updated, nil
}

// DeleteItem removes an item. The item is first tagged deleting and stays
// visible for the delete delay. Online, a failed call restores it.
// Offline, the delete is queued and the item is removed after the delay.
func (e *Engine) DeleteItem(ctx context.Context, id string) error {
	ctx, span := e.startSpan(ctx, "DeleteItem")
	defer span.End()

	scope, orig, applied, err := e.applyToExisting(optimistic.Delete(id))
	if err != nil {
		mutationsTotal.WithLabelValues("delete", "rejected").Inc()
		return newMutationError("delete", id, "", localError(err))
	}
	started := time.Now()
	e.persist(ctx, scope)
	restore := func() {
		e.restore(scope, orig)
		e.persist(ctx, scope)
	}
	removeAfterDelay := func() {
		if wait := e.deleteDelay - time.Since(started); wait > 0 {
			_ = e.sleep(context.WithoutCancel(ctx), wait)
		}
		e.update(scope, func(l item.List) item.List { return optimistic.Remove(l, id) })
		e.persist(ctx, scope)
	}

	q, err := e.queues.Get(ctx, scope)
	if err != nil {
		restore()
		return newMutationError("delete", id, "", err)
	}

	if online, queued := e.conn.IsOnline(), e.hasQueued(q, orig); !online || queued {
		op := item.PendingOperation{Type: item.OpDelete, TargetID: id}
		if _, err := e.deferOp(ctx, "delete", scope, q, applied, op, "", restore); err != nil {
			return err
		}
		removeAfterDelay()
		if online {
			if _, err := e.flush(ctx, scope); err != nil {
				e.logger.Warn("flush after queued delete failed", zap.String("scope", scope.String()), zap.Error(err))
			}
		}
		return nil
	}

	err = e.retry.Execute(ctx, "delete", func(ctx context.Context) error {
		return e.remote.Delete(ctx, id)
	})
	if err != nil {
		restore()
		c := e.surface(scope, err)
		mutationsTotal.WithLabelValues("delete", "reverted").Inc()
		return &MutationError{Op: "delete", ItemID: id, Classification: c, Err: err}
	}

	removeAfterDelay()
	mutationsTotal.WithLabelValues("delete", "synced").Inc()
	return nil
}

// applyToExisting applies in to the list that holds in.ID.
// It returns the owning scope, the pre-mutation copy and the tagged item.
func (e *Engine) applyToExisting(in optimistic.Intent) (item.Scope, item.Item, item.Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	scope, orig, ok := e.findLocked(in.ID)
	if !ok {
		return item.Scope{}, item.Item{}, item.Item{}, optimistic.ErrItemNotFound
	}
	next, applied, err := optimistic.Apply(e.lists[scope], in, e.now())
	if err != nil {
		return item.Scope{}, item.Item{}, item.Item{}, err
	}
	e.lists[scope] = next
	return scope, orig, applied, nil
}

func (e *Engine) hasQueued(q *queue.Queue, it item.Item) bool {
	return it.Sync.IsNeedsSync() || q.PendingFor(it.ID) > 0
}

// deferOp queues op and tags the item NeedsSync. If the queue write fails,
// revert runs and the failure is returned as a *MutationError.
func (e *Engine) deferOp(ctx context.Context, label string, scope item.Scope, q *queue.Queue, it item.Item, op item.PendingOperation, restoreText string, revert func()) (item.Item, error) {
	if _, err := q.Enqueue(ctx, op); err != nil {
		revert()
		e.logger.Error("failed to queue operation",
			zap.String("op", label),
			zap.String("item_id", it.ID),
			zap.Error(err))
		return item.Item{}, newMutationError(label, it.ID, restoreText, err)
	}

	if op.Type != item.OpDelete {
		e.update(scope, func(l item.List) item.List { return optimistic.MarkNeedsSync(l, it.ID) })
		it.Sync = item.NeedsSync()
		e.persist(ctx, scope)
	}
	if !e.conn.IsOnline() {
		e.notify(offlineNotice(scope, q.Len()))
	}
	mutationsTotal.WithLabelValues(label, "queued").Inc()
	return it, nil
}
