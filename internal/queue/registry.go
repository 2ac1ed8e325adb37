package queue

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/store"
)

// Registry opens queues lazily and keeps one Queue per scope.
type Registry struct {
	mu     sync.Mutex
	kv     store.KV
	queues map[item.Scope]*Queue
	logger *zap.Logger
}

// NewRegistry creates a registry over kv.
func NewRegistry(kv store.KV, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		kv:     kv,
		queues: make(map[item.Scope]*Queue),
		logger: logger,
	}
}

// Get returns the queue for scope, loading it from the store on first use.
func (r *Registry) Get(ctx context.Context, scope item.Scope) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[scope]; ok {
		return q, nil
	}
	q, err := Open(ctx, r.kv, scope, r.logger)
	if err != nil {
		return nil, err
	}
	r.queues[scope] = q
	return q, nil
}

// Scopes returns every scope with a persisted queue, including scopes not
// yet opened in this process.
func (r *Registry) Scopes(ctx context.Context) ([]item.Scope, error) {
	keys, err := r.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("queue: list scopes: %w", err)
	}

	seen := make(map[item.Scope]bool)
	var scopes []item.Scope
	for _, k := range keys {
		s, ok := ParseKey(k)
		if !ok {
			r.logger.Warn("queue: ignoring malformed key", zap.String("key", k))
			continue
		}
		seen[s] = true
		scopes = append(scopes, s)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for s, q := range r.queues {
		if !seen[s] && q.Len() > 0 {
			scopes = append(scopes, s)
		}
	}
	return scopes, nil
}
