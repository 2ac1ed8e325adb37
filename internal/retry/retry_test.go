package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/listsync/internal/syncerr"
)

// recorder is a Sleeper that records requested waits without sleeping.
type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func TestConfig_ApplyDefaults(t *testing.T) {
	t.Run("applies all defaults when empty", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()

		assert.Equal(t, 3, config.MaxRetries)
		assert.Equal(t, time.Second, config.InitialBackoff)
		assert.Equal(t, 4*time.Second, config.MaxBackoff)
		assert.Equal(t, 2.0, config.BackoffMultiplier)
	})

	t.Run("preserves non-zero values", func(t *testing.T) {
		config := &Config{
			MaxRetries:        5,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 3.0,
		}
		config.ApplyDefaults()

		assert.Equal(t, 5, config.MaxRetries)
		assert.Equal(t, 2*time.Second, config.InitialBackoff)
		assert.Equal(t, 60*time.Second, config.MaxBackoff)
		assert.Equal(t, 3.0, config.BackoffMultiplier)
	})
}

func TestConfig_Backoff(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, time.Second, c.Backoff(0))
	assert.Equal(t, 2*time.Second, c.Backoff(1))
	assert.Equal(t, 4*time.Second, c.Backoff(2))
	assert.Equal(t, 4*time.Second, c.Backoff(3), "capped at MaxBackoff")
}

func TestExecute_SucceedsFirstTry(t *testing.T) {
	rec := &recorder{}
	ex := NewExecutor(nil, WithSleeper(rec.sleep))

	calls := 0
	err := ex.Execute(context.Background(), "list", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
}

func TestExecute_ServerErrorsExhaustBudget(t *testing.T) {
	rec := &recorder{}
	ex := NewExecutor(nil, WithSleeper(rec.sleep))

	calls := 0
	serverErr := &syncerr.HTTPError{StatusCode: 503, Method: "PATCH", Path: "/items/a/toggle"}
	err := ex.Execute(context.Background(), "toggle", func(context.Context) error {
		calls++
		return serverErr
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls, "first attempt plus three retries")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.waits)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.Equal(t, "toggle", exhausted.Operation)

	var httpErr *syncerr.HTTPError
	require.ErrorAs(t, err, &httpErr, "terminal error embeds the last cause")
	assert.Equal(t, 503, httpErr.StatusCode)
	assert.Equal(t, syncerr.KindServer, syncerr.Classify(err).Kind)
}

func TestExecute_ClientErrorNotRetried(t *testing.T) {
	rec := &recorder{}
	ex := NewExecutor(nil, WithSleeper(rec.sleep))

	calls := 0
	badReq := &syncerr.HTTPError{StatusCode: 400, Message: "text is required"}
	err := ex.Execute(context.Background(), "create", func(context.Context) error {
		calls++
		return badReq
	})

	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
	assert.Same(t, badReq, err, "4xx is returned unchanged")
}

func TestExecute_RequestTimeoutStatusNotRetried(t *testing.T) {
	rec := &recorder{}
	ex := NewExecutor(nil, WithSleeper(rec.sleep))

	calls := 0
	err := ex.Execute(context.Background(), "toggle", func(context.Context) error {
		calls++
		return &syncerr.HTTPError{StatusCode: 408}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestExecute_RecoversAfterTransientFailures(t *testing.T) {
	rec := &recorder{}
	ex := NewExecutor(nil, WithSleeper(rec.sleep))

	calls := 0
	got, err := Do(context.Background(), ex, "list", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", syncerr.ErrOffline
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
}

func TestExecute_ContextCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ex := NewExecutor(&Config{InitialBackoff: time.Hour}, WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	calls := 0
	err := ex.Execute(ctx, "list", func(context.Context) error {
		calls++
		return syncerr.ErrOffline
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExecute_NegativeMaxRetriesDisablesRetry(t *testing.T) {
	rec := &recorder{}
	ex := NewExecutor(&Config{MaxRetries: -1}, WithSleeper(rec.sleep))

	calls := 0
	err := ex.Execute(context.Background(), "list", func(context.Context) error {
		calls++
		return syncerr.ErrOffline
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, exhausted.Attempts)
}

func TestExecute_RealSleepHonorsBackoff(t *testing.T) {
	ex := NewExecutor(&Config{
		MaxRetries:     2,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	})

	start := time.Now()
	err := ex.Execute(context.Background(), "list", func(context.Context) error {
		return syncerr.ErrTimeout
	})

	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}
