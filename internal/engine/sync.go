package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/optimistic"
	"github.com/fyrsmithlabs/listsync/internal/queue"
	"github.com/fyrsmithlabs/listsync/internal/remote"
	"github.com/fyrsmithlabs/listsync/internal/retry"
	"github.com/fyrsmithlabs/listsync/internal/syncerr"
)

// SyncReport summarizes a reconnect.
type SyncReport struct {
	Drains []queue.DrainReport
	// Reloaded lists the scopes refreshed from the service after draining.
	Reloaded []item.Scope
}

// Acked returns the number of operations acknowledged across all scopes.
func (r SyncReport) Acked() int {
	n := 0
	for _, d := range r.Drains {
		n += d.Succeeded()
	}
	return n
}

// Remaining returns the number of operations still queued.
func (r SyncReport) Remaining() int {
	n := 0
	for _, d := range r.Drains {
		n += d.Remaining
	}
	return n
}

// OnReconnect drains every scope with queued operations, oldest first,
// then reloads each scope held in memory. Operations that fail stay
// queued for the next reconnect.
func (e *Engine) OnReconnect(ctx context.Context) (SyncReport, error) {
	ctx, span := e.startSpan(ctx, "OnReconnect")
	defer span.End()

	var report SyncReport
	if !e.conn.IsOnline() {
		return report, fmt.Errorf("sync: %w", syncerr.ErrOffline)
	}

	start := time.Now()
	defer func() { drainDuration.Observe(time.Since(start).Seconds()) }()

	scopes, err := e.queues.Scopes(ctx)
	if err != nil {
		return report, err
	}
	for _, scope := range scopes {
		dr, err := e.flush(ctx, scope)
		report.Drains = append(report.Drains, dr)
		if err != nil {
			return report, err
		}
	}

	var errs []error
	for _, scope := range e.loadedScopes() {
		if _, err := e.Load(ctx, scope); err != nil {
			errs = append(errs, err)
			continue
		}
		report.Reloaded = append(report.Reloaded, scope)
	}

	e.logger.Info("reconnect sync complete",
		zap.Int("scopes", len(scopes)),
		zap.Int("acked", report.Acked()),
		zap.Int("remaining", report.Remaining()),
		zap.Duration("duration", time.Since(start)))
	return report, errors.Join(errs...)
}

// flush drains scope's queue and folds the results into the in-memory list.
func (e *Engine) flush(ctx context.Context, scope item.Scope) (queue.DrainReport, error) {
	q, err := e.queues.Get(ctx, scope)
	if err != nil {
		return queue.DrainReport{Scope: scope}, err
	}
	if q.Len() == 0 {
		return queue.DrainReport{Scope: scope}, nil
	}

	report, err := q.Drain(ctx, e.replay)

	e.update(scope, func(l item.List) item.List {
		for tmpID, canonicalID := range report.IDMap {
			l = optimistic.Rename(l, tmpID, canonicalID)
		}
		for _, op := range report.Acked {
			id := op.TargetID
			if mapped, ok := report.IDMap[id]; ok {
				id = mapped
			}
			if it, ok := l.Get(id); ok && it.Sync.IsNeedsSync() && q.PendingFor(id) == 0 {
				l = optimistic.MarkClean(l, id)
			}
		}
		return l
	})
	e.persist(ctx, scope)

	for _, f := range report.Failures {
		c := syncerr.Classify(f.Err)
		errorsTotal.WithLabelValues(string(c.Kind)).Inc()
		if !c.Retryable {
			e.logger.Warn("queued operation rejected by service",
				zap.String("op_id", f.Op.ID),
				zap.String("type", string(f.Op.Type)),
				zap.String("kind", string(c.Kind)),
				zap.Int("attempts", f.Op.Attempts+1),
				zap.Error(f.Err))
			e.notify(errorNotice(scope, c))
		}
	}
	if report.Attempted > 0 {
		e.notify(syncedNotice(scope, report.Succeeded(), report.Remaining))
	}
	return report, err
}

// replay sends one queued operation through the retry executor. The
// operation id travels as an idempotency key.
func (e *Engine) replay(ctx context.Context, op item.PendingOperation) (string, error) {
	ctx = remote.WithIdempotencyKey(ctx, op.ID)
	name := "replay_" + string(op.Type)

	switch op.Type {
	case item.OpCreate:
		created, err := retry.Do(ctx, e.retry, name, func(ctx context.Context) (item.Item, error) {
			return e.remote.Create(ctx, op.Scope, op.Payload.Text, op.Payload.Priority)
		})
		if err != nil {
			return "", err
		}
		return created.ID, nil
	case item.OpUpdate:
		return "", e.retry.Execute(ctx, name, func(ctx context.Context) error {
			_, err := e.remote.Update(ctx, op.TargetID, op.Payload.Text)
			return err
		})
	case item.OpToggle:
		return "", e.retry.Execute(ctx, name, func(ctx context.Context) error {
			_, err := e.remote.Toggle(ctx, op.TargetID)
			return err
		})
	case item.OpDelete:
		return "", e.retry.Execute(ctx, name, func(ctx context.Context) error {
			return e.remote.Delete(ctx, op.TargetID)
		})
	}
	return "", fmt.Errorf("replay: unknown operation type %q", op.Type)
}

func (e *Engine) loadedScopes() []item.Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	scopes := make([]item.Scope, 0, len(e.lists))
	for s := range e.lists {
		scopes = append(scopes, s)
	}
	return scopes
}
