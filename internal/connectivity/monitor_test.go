package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMonitor_ReconnectFiresOncePerTransition(t *testing.T) {
	checker := NewStaticChecker(false)
	m := NewMonitor(context.Background(), checker, 0, zap.NewNop())
	defer m.Stop()

	var reconnects atomic.Int32
	require.NoError(t, m.OnReconnect(func() { reconnects.Add(1) }))

	assert.False(t, m.IsOnline())

	m.SetOnline(true)
	m.SetOnline(true)
	m.SetOnline(true)

	assert.Eventually(t, func() bool { return reconnects.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), reconnects.Load(), "repeated online reports must not re-fire")

	m.SetOnline(false)
	m.SetOnline(true)
	assert.Eventually(t, func() bool { return reconnects.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestMonitor_OnChange(t *testing.T) {
	m := NewMonitor(context.Background(), NewStaticChecker(true), 0, zap.NewNop())
	defer m.Stop()

	changes := make(chan bool, 4)
	require.NoError(t, m.OnChange(func(online bool) { changes <- online }))

	m.SetOnline(false)
	select {
	case got := <-changes:
		assert.False(t, got)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
}

func TestMonitor_NilCallbackRejected(t *testing.T) {
	m := NewMonitor(context.Background(), NewStaticChecker(true), 0, zap.NewNop())
	defer m.Stop()

	assert.Error(t, m.OnReconnect(nil))
	assert.Error(t, m.OnChange(nil))
}

func TestMonitor_PeriodicCheck(t *testing.T) {
	checker := NewStaticChecker(false)
	m := NewMonitor(context.Background(), checker, 5*time.Millisecond, zap.NewNop())
	defer m.Stop()

	var reconnects atomic.Int32
	require.NoError(t, m.OnReconnect(func() { reconnects.Add(1) }))
	require.NoError(t, m.Start())

	checker.Set(true)
	assert.Eventually(t, func() bool { return m.IsOnline() && reconnects.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestMonitor_CallbackPanicRecovered(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	m := NewMonitor(context.Background(), NewStaticChecker(false), 0, zap.New(core))
	defer m.Stop()

	var after atomic.Bool
	require.NoError(t, m.OnReconnect(func() { panic("boom") }))
	require.NoError(t, m.OnChange(func(bool) { panic("change boom") }))
	require.NoError(t, m.OnReconnect(func() { after.Store(true) }))

	m.SetOnline(true)
	assert.Eventually(t, after.Load, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("connectivity callback panic").Len() == 2
	}, time.Second, 5*time.Millisecond)

	// The monitor keeps delivering after a subscriber panicked.
	after.Store(false)
	m.SetOnline(false)
	m.SetOnline(true)
	assert.Eventually(t, after.Load, time.Second, 5*time.Millisecond)
}

func TestHTTPChecker(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewHTTPChecker(srv.URL+"/", time.Second, nil)
	assert.True(t, c.IsOnline(context.Background()))

	healthy.Store(false)
	assert.False(t, c.IsOnline(context.Background()))

	srv.Close()
	assert.False(t, c.IsOnline(context.Background()))
}

func TestFileSignalChecker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network")
	c := NewFileSignalChecker(path, nil)

	assert.True(t, c.IsOnline(context.Background()), "missing file means online")

	require.NoError(t, os.WriteFile(path, []byte("offline\n"), 0o600))
	assert.False(t, c.IsOnline(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("online"), 0o600))
	assert.True(t, c.IsOnline(context.Background()))
}

func TestFileSignalChecker_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network")
	require.NoError(t, os.WriteFile(path, []byte("online"), 0o600))

	c := NewFileSignalChecker(path, zap.NewNop())
	m := NewMonitor(context.Background(), c, 0, zap.NewNop())
	defer m.Stop()
	require.True(t, m.IsOnline())

	var reconnects atomic.Int32
	require.NoError(t, m.OnReconnect(func() { reconnects.Add(1) }))
	require.NoError(t, m.Start())

	require.NoError(t, os.WriteFile(path, []byte("offline"), 0o600))
	assert.Eventually(t, func() bool { return !m.IsOnline() }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool { return m.IsOnline() && reconnects.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}
