// Package store provides the small key/value persistence layer behind the
// local cache and the pending-operation queues.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("store: key not found")

// KV is a byte-oriented key/value store. Put must be atomic: a reader sees
// either the previous value or the new one, never a partial write.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open returns the store for driver rooted at path. For the file driver
// path is a directory, for sqlite it is the database file.
func Open(driver, path string, logger *zap.Logger) (KV, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(driver) {
	case DriverFile, "":
		return NewFileStore(path, logger)
	case DriverSQLite:
		return NewSQLiteStore(path, logger)
	case DriverMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("store: unknown driver %q", driver)
}

// DefaultPath returns the default location for driver under dataDir.
func DefaultPath(driver, dataDir string) string {
	if strings.ToLower(driver) == DriverSQLite {
		return filepath.Join(dataDir, "listsync.db")
	}
	return filepath.Join(dataDir, "store")
}
