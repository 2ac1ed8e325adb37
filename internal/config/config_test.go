package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, time.Second, cfg.Sync.InitialBackoff.Duration())
	assert.Equal(t, 4*time.Second, cfg.Sync.MaxBackoff.Duration())
	assert.Equal(t, 300*time.Millisecond, cfg.Sync.DeleteDelay.Duration())
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.False(t, cfg.Telemetry.Enabled, "telemetry is opt-in")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Remote.BaseURL = "" },
			wantErr: "remote.base_url is required",
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.Remote.BaseURL = "items" },
			wantErr: "not an absolute url",
		},
		{
			name: "backoff cap below initial",
			mutate: func(c *Config) {
				c.Sync.InitialBackoff = Duration(5 * time.Second)
				c.Sync.MaxBackoff = Duration(time.Second)
			},
			wantErr: "sync.max_backoff",
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "bolt" },
			wantErr: "store.driver",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name: "telemetry protocol",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Protocol = "udp"
			},
			wantErr: "telemetry.protocol",
		},
		{
			name:    "server port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:   "memory store needs no dir",
			mutate: func(c *Config) { c.Store.Driver = "memory"; c.Store.Dir = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Remote.BaseURL = ""
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote.base_url")
	assert.Contains(t, err.Error(), "server port")
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("250ms")))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	require.NoError(t, d.UnmarshalText([]byte(" 300 ")))
	assert.Equal(t, 300*time.Millisecond, d.Duration())

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "300ms", string(out))

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("-5")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("tok-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "tok-123")
	assert.Equal(t, "tok-123", s.Value())
	assert.True(t, s.IsSet())

	out, err := json.Marshal(RemoteConfig{Token: s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "tok-123")

	var back Secret
	require.NoError(t, json.Unmarshal([]byte(`"[REDACTED]"`), &back))
	assert.False(t, back.IsSet(), "placeholder never becomes a token")

	assert.Equal(t, "", Secret("").String())
}
