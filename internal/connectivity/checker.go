// Package connectivity tracks whether the remote list service is reachable
// and notifies subscribers on every offline to online transition.
package connectivity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Checker reports reachability. Implementations must be safe for
// concurrent use.
type Checker interface {
	// IsOnline performs a point-in-time check.
	IsOnline(ctx context.Context) bool

	// Watch pushes state changes to callback until ctx is done. Checkers
	// without a push source return nil immediately.
	Watch(ctx context.Context, callback func(online bool)) error
}

// HTTPChecker probes a health endpoint of the remote service.
type HTTPChecker struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPChecker creates a checker probing baseURL + "/health".
func NewHTTPChecker(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPChecker{
		url:    strings.TrimRight(baseURL, "/") + "/health",
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// IsOnline returns true when the health endpoint answers 2xx.
func (h *HTTPChecker) IsOnline(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return false
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug("health probe failed", zap.String("url", h.url), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Watch is a no-op; HTTP probing is driven by the monitor's ticker.
func (h *HTTPChecker) Watch(ctx context.Context, callback func(bool)) error {
	return nil
}

// StaticChecker reports a fixed, settable state. It backs forced offline
// mode and tests.
type StaticChecker struct {
	online atomic.Bool
}

// NewStaticChecker creates a checker reporting online.
func NewStaticChecker(online bool) *StaticChecker {
	s := &StaticChecker{}
	s.online.Store(online)
	return s
}

func (s *StaticChecker) IsOnline(ctx context.Context) bool { return s.online.Load() }

// Set changes the reported state. It does not notify watchers.
func (s *StaticChecker) Set(online bool) { s.online.Store(online) }

func (s *StaticChecker) Watch(ctx context.Context, callback func(bool)) error { return nil }

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// FileSignalChecker reads host connectivity from a signal file whose
// content is "online" or "offline". A missing file means online.
type FileSignalChecker struct {
	path   string
	logger *zap.Logger
}

// NewFileSignalChecker creates a checker for the signal file at path.
func NewFileSignalChecker(path string, logger *zap.Logger) *FileSignalChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSignalChecker{path: path, logger: logger}
}

// IsOnline reads the signal file.
func (f *FileSignalChecker) IsOnline(ctx context.Context) bool {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return true
	}
	return !bytes.EqualFold(bytes.TrimSpace(data), []byte("offline"))
}

// Watch watches the directory holding the signal file, so atomic
// replacements and deletions are seen as well as in-place writes.
func (f *FileSignalChecker) Watch(ctx context.Context, callback func(bool)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	name := filepath.Clean(f.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					callback(f.IsOnline(ctx))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("signal file watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
