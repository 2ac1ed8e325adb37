package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that keeps every entry in memory, trace level
// included. Components that take a *zap.Logger get Underlying().
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		logs:   logs,
	}
}

// All returns the recorded entries, oldest first.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.logs.All()
}

// FilterMessage narrows the recorded entries to those whose message
// contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.logs.FilterMessageSnippet(msg)
}

func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if t.logs.FilterLevelExact(level).FilterMessageSnippet(msg).Len() > 0 {
		return
	}
	tb.Errorf("no %s entry containing %q; recorded: [%s]", level, msg, strings.Join(t.messages(), "; "))
}

// AssertField checks that some entry whose message contains msg carries
// key with the expected value. zap stores integers as int64.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected any) {
	tb.Helper()
	var seen []any
	for _, entry := range t.FilterMessage(msg).All() {
		v, ok := entry.ContextMap()[key]
		if !ok {
			continue
		}
		if reflect.DeepEqual(v, expected) {
			return
		}
		seen = append(seen, v)
	}
	tb.Errorf("no %q entry with %s=%v; values seen: %v", msg, key, expected, seen)
}

func (t *TestLogger) messages() []string {
	var out []string
	for _, e := range t.logs.All() {
		out = append(out, e.Message)
	}
	return out
}
