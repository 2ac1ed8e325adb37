// Package app wires configuration, logging, telemetry, persistence and the
// sync engine together for the listsync binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/cache"
	"github.com/fyrsmithlabs/listsync/internal/config"
	"github.com/fyrsmithlabs/listsync/internal/connectivity"
	"github.com/fyrsmithlabs/listsync/internal/engine"
	"github.com/fyrsmithlabs/listsync/internal/logging"
	"github.com/fyrsmithlabs/listsync/internal/queue"
	"github.com/fyrsmithlabs/listsync/internal/remote"
	"github.com/fyrsmithlabs/listsync/internal/retry"
	"github.com/fyrsmithlabs/listsync/internal/store"
	"github.com/fyrsmithlabs/listsync/internal/telemetry"
)

// Options adjust wiring for a single process.
type Options struct {
	// Offline forces the connectivity monitor to report offline.
	Offline bool
	// Notifier receives engine notices. Nil discards them.
	Notifier engine.Notifier
	// LogOutput overrides stderr for log output.
	LogOutput io.Writer
	// Remote replaces the HTTP client, mainly for tests.
	Remote remote.Service
	// Checker replaces the configured connectivity checker.
	Checker connectivity.Checker
}

// App holds the running components. Close releases them in reverse order.
type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Telemetry *telemetry.Telemetry
	Store     store.KV
	Monitor   *connectivity.Monitor
	Engine    *engine.Engine

	closers []func(context.Context) error
}

// New builds an App from cfg. The engine is started, so queued work drains
// on the next offline to online transition.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.Telemetry, err = telemetry.New(ctx, TelemetryConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.onClose(a.Telemetry.Shutdown)

	logCfg, err := LoggingConfig(cfg)
	if err != nil {
		return nil, err
	}
	if opts.LogOutput != nil {
		a.Logger, err = logging.NewLoggerTo(logCfg, a.Telemetry.LoggerProvider(), opts.LogOutput)
	} else {
		a.Logger, err = logging.NewLogger(logCfg, a.Telemetry.LoggerProvider())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.onClose(func(context.Context) error {
		_ = a.Logger.Sync()
		return nil
	})
	zl := a.Logger.Underlying()

	a.Store, err = store.Open(cfg.Store.Driver, StorePath(cfg), zl.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.onClose(func(context.Context) error { return a.Store.Close() })

	svc := opts.Remote
	if svc == nil {
		svc, err = remote.NewClient(RemoteConfig(cfg), zl.Named("remote"))
		if err != nil {
			return nil, fmt.Errorf("failed to create remote client: %w", err)
		}
	}

	checker := opts.Checker
	if checker == nil {
		checker = NewChecker(cfg, opts.Offline, zl.Named("connectivity"))
	}
	interval := cfg.Sync.CheckInterval.Duration()
	if opts.Offline {
		interval = 0
	}
	a.Monitor = connectivity.NewMonitor(ctx, checker, interval, zl.Named("connectivity"))
	a.onClose(func(context.Context) error {
		a.Monitor.Stop()
		return nil
	})

	engineOpts := []engine.Option{
		engine.WithLogger(zl.Named("engine")),
		engine.WithDeleteDelay(cfg.Sync.DeleteDelay.Duration()),
	}
	if opts.Notifier != nil {
		engineOpts = append(engineOpts, engine.WithNotifier(opts.Notifier))
	}
	a.Engine, err = engine.New(engine.Deps{
		Remote:       svc,
		Cache:        cache.New(a.Store, zl.Named("cache")),
		Queues:       queue.NewRegistry(a.Store, zl.Named("queue")),
		Connectivity: a.Monitor,
		Retry:        retry.NewExecutor(RetryConfig(cfg), retry.WithLogger(zl.Named("retry"))),
	}, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.onClose(func(context.Context) error {
		a.Engine.Close()
		return nil
	})

	if err := a.Engine.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	if err := a.Monitor.Start(); err != nil {
		return nil, fmt.Errorf("failed to start connectivity monitor: %w", err)
	}

	a.Logger.Info(ctx, "listsync initialized",
		zap.String("remote", cfg.Remote.BaseURL),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("online", a.Monitor.IsOnline()),
		zap.Bool("telemetry", a.Telemetry.IsEnabled()))

	return a, nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases all components, most recently started first.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// StorePath resolves the persistence location for cfg.
func StorePath(cfg *config.Config) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	return store.DefaultPath(strings.ToLower(cfg.Store.Driver), cfg.Store.Dir)
}

// NewChecker picks the connectivity source: forced offline, a watched
// signal file, or the service health endpoint.
func NewChecker(cfg *config.Config, offline bool, logger *zap.Logger) connectivity.Checker {
	switch {
	case offline:
		return connectivity.NewStaticChecker(false)
	case cfg.Sync.SignalFile != "":
		return connectivity.NewFileSignalChecker(cfg.Sync.SignalFile, logger)
	default:
		return connectivity.NewHTTPChecker(cfg.Remote.BaseURL, cfg.Remote.Timeout.Duration(), logger)
	}
}

// RemoteConfig maps the remote section onto the client config.
func RemoteConfig(cfg *config.Config) remote.Config {
	return remote.Config{
		BaseURL:   cfg.Remote.BaseURL,
		Token:     cfg.Remote.Token.Value(),
		Timeout:   cfg.Remote.Timeout.Duration(),
		UserAgent: cfg.Remote.UserAgent,
		RateLimit: cfg.Remote.RateLimit,
		Burst:     cfg.Remote.Burst,
	}
}

// RetryConfig maps the sync section onto the retry policy.
func RetryConfig(cfg *config.Config) *retry.Config {
	rc := &retry.Config{
		MaxRetries:     cfg.Sync.MaxRetries,
		InitialBackoff: cfg.Sync.InitialBackoff.Duration(),
		MaxBackoff:     cfg.Sync.MaxBackoff.Duration(),
	}
	rc.ApplyDefaults()
	return rc
}

// LoggingConfig maps the logging section onto the logger config.
func LoggingConfig(cfg *config.Config) (*logging.Config, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Output.OTEL = cfg.Logging.OTEL
	return lc, nil
}

// TelemetryConfig maps the telemetry section onto the provider config.
func TelemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Endpoint = cfg.Telemetry.Endpoint
	tc.Protocol = cfg.Telemetry.Protocol
	tc.Insecure = cfg.Telemetry.Insecure
	tc.SampleRate = cfg.Telemetry.SampleRate
	if cfg.Telemetry.ServiceName != "" {
		tc.ServiceName = cfg.Telemetry.ServiceName
	}
	return tc
}
