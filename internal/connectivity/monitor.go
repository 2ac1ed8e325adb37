package connectivity

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// callbackTimeout bounds how long a slow subscriber is waited on before
// the monitor logs and moves on. The callback itself keeps running.
const callbackTimeout = 5 * time.Second

// Monitor tracks online state. OnReconnect subscribers fire exactly once per
// offline to online transition; repeated online reports do not re-fire.
type Monitor struct {
	checker       Checker
	online        atomic.Bool
	checkInterval time.Duration
	mu            sync.RWMutex
	onChange      []func(bool)
	onReconnect   []func()
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *zap.Logger
}

// NewMonitor creates a monitor seeded with the checker's current state.
// A zero checkInterval disables periodic probing.
func NewMonitor(ctx context.Context, checker Checker, checkInterval time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	m := &Monitor{
		checker:       checker,
		checkInterval: checkInterval,
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger,
	}

	m.online.Store(checker.IsOnline(ctx))
	connectivityStatus.Set(boolGauge(m.online.Load()))

	return m
}

// Start begins watching the checker and, if configured, periodic probing.
func (m *Monitor) Start() error {
	if err := m.checker.Watch(m.ctx, m.SetOnline); err != nil {
		return fmt.Errorf("connectivity: watch: %w", err)
	}
	if m.checkInterval > 0 {
		go m.runPeriodicCheck()
	}
	return nil
}

func (m *Monitor) runPeriodicCheck() {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.SetOnline(m.checker.IsOnline(m.ctx))
		}
	}
}

// Check probes the checker once and applies the result.
func (m *Monitor) Check(ctx context.Context) bool {
	online := m.checker.IsOnline(ctx)
	m.SetOnline(online)
	return online
}

// SetOnline records a host connectivity event and notifies subscribers if
// the state changed.
func (m *Monitor) SetOnline(online bool) {
	if !m.online.CompareAndSwap(!online, online) {
		return
	}

	connectivityStatus.Set(boolGauge(online))
	m.logger.Info("connectivity changed", zap.Bool("online", online))

	m.mu.RLock()
	changeCbs := make([]func(bool), len(m.onChange))
	copy(changeCbs, m.onChange)
	var reconnectCbs []func()
	if online {
		reconnectCbs = make([]func(), len(m.onReconnect))
		copy(reconnectCbs, m.onReconnect)
	}
	m.mu.RUnlock()

	for _, cb := range changeCbs {
		m.fire(func() { cb(online) })
	}
	if online {
		reconnectsTotal.Inc()
	}
	for _, cb := range reconnectCbs {
		m.fire(cb)
	}
}

// IsOnline returns the last known state.
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// OnReconnect subscribes cb to offline to online transitions.
func (m *Monitor) OnReconnect(cb func()) error {
	if cb == nil {
		return fmt.Errorf("connectivity: callback cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, cb)
	return nil
}

// OnChange subscribes cb to every state change.
func (m *Monitor) OnChange(cb func(online bool)) error {
	if cb == nil {
		return fmt.Errorf("connectivity: callback cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, cb)
	return nil
}

// fire runs cb in its own goroutine and recovers panics.
func (m *Monitor) fire(cb func()) {
	go func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("connectivity callback panic", zap.Any("panic", r))
				}
			}()
			cb()
		}()

		select {
		case <-done:
		case <-time.After(callbackTimeout):
			m.logger.Warn("connectivity callback still running",
				zap.Duration("timeout", callbackTimeout))
		}
	}()
}

// Stop shuts down watching and probing.
func (m *Monitor) Stop() {
	m.cancel()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
