// Package retry runs remote operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/syncerr"
)

// Config configures retry behavior for remote list-service calls.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// A negative value disables retries.
	// Default: 3 (four attempts in total)
	MaxRetries int

	// InitialBackoff is the wait before the first retry.
	// Default: 1 second
	InitialBackoff time.Duration

	// MaxBackoff caps every individual wait.
	// Default: 4 seconds
	MaxBackoff time.Duration

	// BackoffMultiplier is the growth factor between waits.
	// Default: 2
	BackoffMultiplier float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        4 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.MaxRetries == 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}
}

// Backoff returns the wait before retry number attempt (0-based).
func (c *Config) Backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.BackoffMultiplier, float64(attempt))
	if d > float64(c.MaxBackoff) {
		return c.MaxBackoff
	}
	return time.Duration(d)
}

func (c *Config) maxAttempts() int {
	if c.MaxRetries < 0 {
		return 1
	}
	return c.MaxRetries + 1
}

// ExhaustedError is returned when every attempt failed with a retryable
// error. It unwraps to the last cause.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleeper replaces the wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

// WithLogger sets the executor logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// Executor retries operations whose errors classify as retryable.
type Executor struct {
	cfg    Config
	sleep  Sleeper
	logger *zap.Logger
}

// NewExecutor creates an executor. A nil config uses DefaultConfig.
func NewExecutor(cfg *Config, opts ...Option) *Executor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.ApplyDefaults()

	e := &Executor{
		cfg:    c,
		sleep:  ContextSleep,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Executor) Config() Config {
	return e.cfg
}

// Execute runs fn until it succeeds, fails with a non-retryable error, or
// the attempt budget is spent. Non-retryable errors are returned unchanged.
func (e *Executor) Execute(ctx context.Context, name string, fn func(context.Context) error) error {
	_, err := Do(ctx, e, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do is the value-returning form of Execute.
func Do[T any](ctx context.Context, e *Executor, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	maxAttempts := e.cfg.maxAttempts()
	start := time.Now()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		attemptsTotal.WithLabelValues(name).Inc()

		v, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				e.logger.Info("operation recovered after retries",
					zap.String("operation", name),
					zap.Int("attempts", attempt+1),
					zap.Duration("total_time", time.Since(start)))
			}
			resultsTotal.WithLabelValues(name, "success").Inc()
			return v, nil
		}
		lastErr = err

		c := syncerr.Classify(err)
		if !c.Retryable {
			e.logger.Debug("operation error is not retryable",
				zap.String("operation", name),
				zap.String("kind", string(c.Kind)),
				zap.Error(err))
			resultsTotal.WithLabelValues(name, "fatal").Inc()
			return zero, err
		}

		if attempt == maxAttempts-1 {
			break
		}

		backoff := e.cfg.Backoff(attempt)
		e.logger.Info("retrying operation after transient error",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.String("kind", string(c.Kind)),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		if err := e.sleep(ctx, backoff); err != nil {
			resultsTotal.WithLabelValues(name, "canceled").Inc()
			return zero, fmt.Errorf("%s canceled: %w", name, errors.Join(err, lastErr))
		}
	}

	e.logger.Warn("operation failed after all retries exhausted",
		zap.String("operation", name),
		zap.Int("total_attempts", maxAttempts),
		zap.Duration("total_time", time.Since(start)),
		zap.Error(lastErr))
	resultsTotal.WithLabelValues(name, "exhausted").Inc()

	return zero, &ExhaustedError{Operation: name, Attempts: maxAttempts, Last: lastErr}
}
