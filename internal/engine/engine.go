// Package engine keeps scoped todo lists consistent across the local cache,
// in-flight remote calls and the queue of unacknowledged mutations.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/cache"
	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/queue"
	"github.com/fyrsmithlabs/listsync/internal/remote"
	"github.com/fyrsmithlabs/listsync/internal/retry"
	"github.com/fyrsmithlabs/listsync/internal/syncerr"
)

// DefaultDeleteDelay is how long a deleted item stays visible, tagged
// deleting, before it is removed from the list.
const DefaultDeleteDelay = 300 * time.Millisecond

// Connectivity is the part of connectivity.Monitor the engine needs.
type Connectivity interface {
	IsOnline() bool
	OnReconnect(func()) error
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Remote       remote.Service
	Cache        *cache.Cache
	Queues       *queue.Registry
	Connectivity Connectivity
	Retry        *retry.Executor
}

func (d Deps) validate() error {
	switch {
	case d.Remote == nil:
		return errors.New("engine: remote service is required")
	case d.Cache == nil:
		return errors.New("engine: cache is required")
	case d.Queues == nil:
		return errors.New("engine: queue registry is required")
	case d.Connectivity == nil:
		return errors.New("engine: connectivity is required")
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNotifier sets the receiver of user-facing notices.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithDeleteDelay overrides DefaultDeleteDelay.
func WithDeleteDelay(d time.Duration) Option {
	return func(e *Engine) { e.deleteDelay = d }
}

// WithClock overrides the time source used for item timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSleeper overrides the wait used for the delete delay.
func WithSleeper(s retry.Sleeper) Option {
	return func(e *Engine) { e.sleep = s }
}

// Engine is the sync engine. All methods are safe for concurrent use. The
// state lock is never held across a remote call or a wait.
type Engine struct {
	mu    sync.Mutex
	lists map[item.Scope]item.List

	remote   remote.Service
	cache    *cache.Cache
	queues   *queue.Registry
	conn     Connectivity
	retry    *retry.Executor
	notifier Notifier

	deleteDelay time.Duration
	now         func() time.Time
	sleep       retry.Sleeper
	tracer      trace.Tracer
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an engine. Call Start to subscribe to reconnect events.
func New(deps Deps, opts ...Option) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Retry == nil {
		deps.Retry = retry.NewExecutor(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		lists:       make(map[item.Scope]item.List),
		remote:      deps.Remote,
		cache:       deps.Cache,
		queues:      deps.Queues,
		conn:        deps.Connectivity,
		retry:       deps.Retry,
		notifier:    nopNotifier{},
		deleteDelay: DefaultDeleteDelay,
		now:         time.Now,
		sleep:       retry.ContextSleep,
		tracer:      otel.Tracer("github.com/fyrsmithlabs/listsync/internal/engine"),
		logger:      zap.NewNop(),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start drains queued work whenever connectivity returns.
func (e *Engine) Start() error {
	return e.conn.OnReconnect(func() {
		if _, err := e.OnReconnect(e.ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("reconnect sync failed", zap.Error(err))
		}
	})
}

// Close stops background reconnect handling. In-flight calls started by
// the caller are not interrupted.
func (e *Engine) Close() {
	e.cancel()
}

// Online reports the current connectivity state.
func (e *Engine) Online() bool {
	return e.conn.IsOnline()
}

// Items returns the current in-memory list for scope in display order.
func (e *Engine) Items(scope item.Scope) []item.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lists[scope].Items()
}

// Item returns a single item by id from any loaded scope.
func (e *Engine) Item(id string) (item.Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, it, ok := e.findLocked(id)
	return it, ok
}

// Pending returns the queued operations for scope in replay order.
func (e *Engine) Pending(ctx context.Context, scope item.Scope) ([]item.PendingOperation, error) {
	q, err := e.queues.Get(ctx, scope)
	if err != nil {
		return nil, err
	}
	return q.Pending(), nil
}

func (e *Engine) findLocked(id string) (item.Scope, item.Item, bool) {
	for scope, list := range e.lists {
		if it, ok := list.Get(id); ok {
			return scope, it, true
		}
	}
	return item.Scope{}, item.Item{}, false
}

// update applies fn to scope's list under the state lock.
func (e *Engine) update(scope item.Scope, fn func(item.List) item.List) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lists[scope] = fn(e.lists[scope])
}

// restore puts the pre-mutation copy of one item back, leaving concurrent
// changes to other items in place.
func (e *Engine) restore(scope item.Scope, orig item.Item) {
	e.update(scope, func(l item.List) item.List {
		return l.With(orig)
	})
}

// persist writes scope's list to the cache. Failures are logged; the cache
// is a read fallback, not the source of truth.
func (e *Engine) persist(ctx context.Context, scope item.Scope) {
	items := e.Items(scope)
	if err := e.cache.Save(context.WithoutCancel(ctx), scope, items); err != nil {
		e.logger.Warn("cache save failed", zap.String("scope", scope.String()), zap.Error(err))
	}
}

func (e *Engine) notify(n Notice) {
	e.logger.Debug("notice",
		zap.String("kind", string(n.Kind)),
		zap.String("scope", n.Scope.String()),
		zap.String("message", n.Message),
		zap.Int("pending", n.Pending))
	e.notifier.Notify(n)
}

func (e *Engine) surface(scope item.Scope, err error) syncerr.Classification {
	c := syncerr.Classify(err)
	errorsTotal.WithLabelValues(string(c.Kind)).Inc()
	e.notify(errorNotice(scope, c))
	return c
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "engine."+name, trace.WithAttributes(attrs...))
}

func scopeAttrs(s item.Scope) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("listsync.user_id", s.UserID),
		attribute.String("listsync.list_id", s.ListID),
	}
}

func (e *Engine) pendingCount(ctx context.Context, scope item.Scope) int {
	q, err := e.queues.Get(ctx, scope)
	if err != nil {
		return 0
	}
	return q.Len()
}
