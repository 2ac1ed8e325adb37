// Package config provides configuration loading for listsync.
//
// Configuration comes from defaults, an optional YAML file and LISTSYNC_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the complete listsync configuration.
type Config struct {
	Remote    RemoteConfig    `koanf:"remote"`
	Sync      SyncConfig      `koanf:"sync"`
	Store     StoreConfig     `koanf:"store"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Server    ServerConfig    `koanf:"server"`
}

// RemoteConfig configures the list-item service client.
type RemoteConfig struct {
	BaseURL   string   `koanf:"base_url"`
	Token     Secret   `koanf:"token"`
	Timeout   Duration `koanf:"timeout"`
	UserAgent string   `koanf:"user_agent"`
	RateLimit float64  `koanf:"rate_limit"` // requests per second, 0 disables
	Burst     int      `koanf:"burst"`
}

// SyncConfig configures retries, connectivity probing and delete timing.
type SyncConfig struct {
	MaxRetries     int      `koanf:"max_retries"` // negative disables retries
	InitialBackoff Duration `koanf:"initial_backoff"`
	MaxBackoff     Duration `koanf:"max_backoff"`
	DeleteDelay    Duration `koanf:"delete_delay"`
	CheckInterval  Duration `koanf:"check_interval"`
	// SignalFile, when set, is watched for host connectivity events instead
	// of probing the service health endpoint.
	SignalFile string `koanf:"signal_file"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `koanf:"driver"` // file, sqlite or memory
	Dir    string `koanf:"dir"`
	Path   string `koanf:"path"` // overrides the driver default under Dir
}

// LoggingConfig is the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // grpc or http
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// ServerConfig configures the reference item server.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:   "http://localhost:8080",
			Timeout:   Duration(10 * time.Second),
			UserAgent: "listsync/0.1",
			RateLimit: 20,
			Burst:     5,
		},
		Sync: SyncConfig{
			MaxRetries:     3,
			InitialBackoff: Duration(time.Second),
			MaxBackoff:     Duration(4 * time.Second),
			DeleteDelay:    Duration(300 * time.Millisecond),
			CheckInterval:  Duration(30 * time.Second),
		},
		Store: StoreConfig{
			Driver: "file",
			Dir:    defaultDataDir(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "listsync",
			SampleRate:  1.0,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ShutdownTimeout: Duration(10 * time.Second),
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Remote.BaseURL == "" {
		errs = append(errs, errors.New("remote.base_url is required"))
	} else if u, err := url.Parse(c.Remote.BaseURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("remote.base_url %q is not an absolute url", c.Remote.BaseURL))
	}
	if c.Remote.RateLimit < 0 {
		errs = append(errs, errors.New("remote.rate_limit must be >= 0"))
	}

	if c.Sync.MaxBackoff.Duration() < c.Sync.InitialBackoff.Duration() {
		errs = append(errs, fmt.Errorf("sync.max_backoff (%s) must be >= sync.initial_backoff (%s)",
			c.Sync.MaxBackoff.Duration(), c.Sync.InitialBackoff.Duration()))
	}

	switch strings.ToLower(c.Store.Driver) {
	case "file", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be file, sqlite or memory, got %q", c.Store.Driver))
	}
	if c.Store.Driver != "memory" && c.Store.Dir == "" && c.Store.Path == "" {
		errs = append(errs, errors.New("store.dir or store.path is required"))
	}

	if f := c.Logging.Format; f != "json" && f != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", f))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if p := c.Telemetry.Protocol; p != "grpc" && p != "http" {
			errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http, got %q", p))
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate))
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}

	return errors.Join(errs...)
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "listsync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "listsync")
}
