package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variable names.
const EnvPrefix = "LISTSYNC_"

const (
	maxConfigFileSize = 1 << 20
	systemConfigDir   = "/etc/listsync"
)

// LoadWithFile builds a Config from Default, then the YAML file at
// configPath, then LISTSYNC_* environment variables, later sources winning.
// An empty configPath means DefaultPath. A missing file is not an error.
//
// The file may hold the remote bearer token, so it must sit under
// ~/.config/listsync or /etc/listsync, be mode 0600 or 0400 and be no
// larger than 1MB.
//
// Environment names drop the prefix and split section from field at the
// first underscore:
//
//	LISTSYNC_REMOTE_BASE_URL    -> remote.base_url
//	LISTSYNC_SYNC_DELETE_DELAY  -> sync.delete_delay
//	LISTSYNC_STORE_DRIVER       -> store.driver
func LoadWithFile(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	k := koanf.New(".")

	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// readConfigFile returns the file's bytes, or nil if it does not exist.
// Permissions and size are checked on the open descriptor, not the path.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := checkFileInfo(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey maps LISTSYNC_SECTION_FIELD_NAME to section.field_name.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	if section, field, ok := strings.Cut(key, "_"); ok {
		return section + "." + field
	}
	return key
}

func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "listsync"), nil
}

// DefaultPath returns ~/.config/listsync/config.yaml.
func DefaultPath() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates ~/.config/listsync with mode 0700.
func EnsureConfigDir() error {
	dir, err := userConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath requires path, after cleaning and symlink resolution,
// to lie inside one of the allowed config directories. Paths that do not
// exist yet are checked as written.
func validateConfigPath(path string) error {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if real, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = real
	}

	userDir, err := userConfigDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{userDir, systemConfigDir} {
		if resolved == dir || strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/listsync/ or %s/", systemConfigDir)
}

func checkFileInfo(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
