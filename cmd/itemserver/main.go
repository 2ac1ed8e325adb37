// Itemserver is an in-memory reference implementation of the list-item
// service that listsync syncs against.
//
// Configuration is read from the server, logging and telemetry sections of
// the listsync config file and LISTSYNC_* environment variables.
//
// Usage:
//
//	# Start on localhost:8080
//	itemserver
//
//	# Listen elsewhere
//	LISTSYNC_SERVER_PORT=9090 itemserver
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/app"
	"github.com/fyrsmithlabs/listsync/internal/config"
	"github.com/fyrsmithlabs/listsync/internal/itemserver"
	"github.com/fyrsmithlabs/listsync/internal/logging"
	"github.com/fyrsmithlabs/listsync/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/listsync/config.yaml)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  itemserver           Start the item server\n")
			fmt.Fprintf(os.Stderr, "  itemserver version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithFile(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printVersion() {
	fmt.Printf("itemserver by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run serves until ctx is canceled, then shuts down within the configured
// timeout.
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, app.TelemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	logCfg, err := app.LoggingConfig(cfg)
	if err != nil {
		return err
	}
	logCfg.Fields["service"] = "itemserver"
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	srv, err := itemserver.NewServer(itemserver.NewStore(), logger.Underlying(), &itemserver.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		MeterProvider: tel.MeterProvider(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info(ctx, "Starting itemserver",
		zap.String("version", version),
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"),
		zap.Bool("telemetry", tel.IsEnabled()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info(ctx, "Server shutdown complete")
	return nil
}
