// Package queue persists mutations that could not reach the remote service
// and replays them in order once connectivity returns.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/store"
)

const keyPrefix = "queue:"

// Key returns the store key for the queue of scope. Both parts are
// escaped so ids containing the separator round-trip through ParseKey.
func Key(s item.Scope) string {
	return keyPrefix + url.QueryEscape(s.UserID) + ":" + url.QueryEscape(s.ListID)
}

// ParseKey is the inverse of Key.
func ParseKey(key string) (item.Scope, bool) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return item.Scope{}, false
	}
	user, list, ok := strings.Cut(rest, ":")
	if !ok {
		return item.Scope{}, false
	}
	u, err1 := url.QueryUnescape(user)
	l, err2 := url.QueryUnescape(list)
	if err1 != nil || err2 != nil {
		return item.Scope{}, false
	}
	s := item.Scope{UserID: u, ListID: l}
	return s, s.Validate() == nil
}

// ErrNotQueued is returned by Remove for an unknown operation id.
var ErrNotQueued = errors.New("queue: operation not found")

// Queue is the FIFO of pending operations for one scope. Every mutation is
// written through to the store before the call returns.
type Queue struct {
	mu      sync.Mutex
	drainMu sync.Mutex
	kv      store.KV
	key     string
	scope   item.Scope
	ops     []item.PendingOperation
	logger  *zap.Logger
	now     func() time.Time
}

// Open loads the persisted queue for scope. Entries that fail validation or
// belong to another scope are discarded.
func Open(ctx context.Context, kv store.KV, scope item.Scope, logger *zap.Logger) (*Queue, error) {
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		kv:     kv,
		key:    Key(scope),
		scope:  scope,
		logger: logger,
		now:    time.Now,
	}
	if err := q.load(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) load(ctx context.Context) error {
	data, err := q.kv.Get(ctx, q.key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("queue: load %s: %w", q.scope, err)
	}

	var raw []item.PendingOperation
	if err := json.Unmarshal(data, &raw); err != nil {
		q.logger.Warn("queue: discarding unreadable queue",
			zap.String("key", q.key), zap.Error(err))
		return q.kv.Delete(ctx, q.key)
	}

	dropped := 0
	for _, op := range raw {
		if err := op.Validate(); err != nil {
			q.logger.Warn("queue: skipping invalid entry", zap.String("op_id", op.ID), zap.Error(err))
			dropped++
			continue
		}
		if op.Scope != q.scope {
			q.logger.Warn("queue: skipping entry from another scope",
				zap.String("op_id", op.ID), zap.String("op_scope", op.Scope.String()))
			dropped++
			continue
		}
		q.ops = append(q.ops, op)
	}
	pendingOperations.Add(float64(len(q.ops)))

	if dropped > 0 {
		return q.persistLocked(ctx)
	}
	return nil
}

// Scope returns the scope this queue belongs to.
func (q *Queue) Scope() item.Scope { return q.scope }

// Enqueue appends op. ID, Scope and EnqueuedAt are filled in when empty.
func (q *Queue) Enqueue(ctx context.Context, op item.PendingOperation) (item.PendingOperation, error) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.Scope == (item.Scope{}) {
		op.Scope = q.scope
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = q.now().UTC()
	}
	if op.Scope != q.scope {
		return op, fmt.Errorf("queue: operation scope %s does not match queue %s", op.Scope, q.scope)
	}
	if err := op.Validate(); err != nil {
		return op, fmt.Errorf("queue: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, op)
	if err := q.persistLocked(ctx); err != nil {
		q.ops = q.ops[:len(q.ops)-1]
		return op, err
	}
	pendingOperations.Inc()
	q.logger.Debug("queue: enqueued",
		zap.String("op_id", op.ID),
		zap.String("type", string(op.Type)),
		zap.String("target_id", op.TargetID),
		zap.Int("depth", len(q.ops)))
	return op, nil
}

// Remove deletes an acknowledged or abandoned operation.
func (q *Queue) Remove(ctx context.Context, opID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(opID)
	if idx < 0 {
		return ErrNotQueued
	}
	prev := q.ops
	q.ops = append(append([]item.PendingOperation{}, prev[:idx]...), prev[idx+1:]...)
	if err := q.persistLocked(ctx); err != nil {
		q.ops = prev
		return err
	}
	pendingOperations.Dec()
	return nil
}

// Pending returns a copy of the queued operations in FIFO order.
func (q *Queue) Pending() []item.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]item.PendingOperation, len(q.ops))
	copy(out, q.ops)
	return out
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// PendingFor returns how many queued operations target id.
func (q *Queue) PendingFor(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, op := range q.ops {
		if op.TargetID == id {
			n++
		}
	}
	return n
}

func (q *Queue) indexLocked(opID string) int {
	for i, op := range q.ops {
		if op.ID == opID {
			return i
		}
	}
	return -1
}

func (q *Queue) persistLocked(ctx context.Context) error {
	if len(q.ops) == 0 {
		if err := q.kv.Delete(ctx, q.key); err != nil {
			return fmt.Errorf("queue: persist %s: %w", q.scope, err)
		}
		return nil
	}
	data, err := json.Marshal(q.ops)
	if err != nil {
		return fmt.Errorf("queue: encode %s: %w", q.scope, err)
	}
	if err := q.kv.Put(ctx, q.key, data); err != nil {
		return fmt.Errorf("queue: persist %s: %w", q.scope, err)
	}
	return nil
}
