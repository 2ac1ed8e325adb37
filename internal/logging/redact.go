package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/listsync/internal/config"
)

const redactedValue = "[REDACTED]"

// Secret returns a field that logs only the length of val.
func Secret(key string, val config.Secret) zap.Field {
	return zap.String(key, fmt.Sprintf("[REDACTED:%d]", len(val.Value())))
}

// RedactingEncoder wraps a zapcore.Encoder and redacts sensitive fields,
// both those added through With and those passed per entry.
type RedactingEncoder struct {
	zapcore.Encoder
	redactFields map[string]bool
	redactRegex  []*regexp.Regexp
}

// NewRedactingEncoder wraps base with cfg's rules.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	e := &RedactingEncoder{Encoder: base, redactFields: map[string]bool{}}
	if !cfg.Enabled {
		return e, nil
	}
	for _, f := range cfg.Fields {
		e.redactFields[strings.ToLower(f)] = true
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		e.redactRegex = append(e.redactRegex, re)
	}
	return e, nil
}

func (e *RedactingEncoder) sensitiveKey(key string) bool {
	return e.redactFields[strings.ToLower(key)]
}

func (e *RedactingEncoder) sensitiveValue(val string) bool {
	for _, re := range e.redactRegex {
		if re.MatchString(val) {
			return true
		}
	}
	return false
}

// redact returns fields with sensitive entries replaced.
func (e *RedactingEncoder) redact(fields []zapcore.Field) []zapcore.Field {
	out := fields
	copied := false
	for i, f := range fields {
		var repl string
		switch {
		case e.sensitiveKey(f.Key):
			repl = redactedValue
		case f.Type == zapcore.StringType && e.sensitiveValue(f.String):
			repl = "[REDACTED:pattern]"
		default:
			continue
		}
		if !copied {
			out = append([]zapcore.Field(nil), fields...)
			copied = true
		}
		out[i] = zap.String(f.Key, repl)
	}
	return out
}

func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if e.sensitiveValue(ent.Message) {
		ent.Message = e.redactMessage(ent.Message)
	}
	return e.Encoder.EncodeEntry(ent, e.redact(fields))
}

func (e *RedactingEncoder) redactMessage(msg string) string {
	for _, re := range e.redactRegex {
		msg = re.ReplaceAllString(msg, redactedValue)
	}
	return msg
}

func (e *RedactingEncoder) AddString(key, val string) {
	switch {
	case e.sensitiveKey(key):
		e.Encoder.AddString(key, redactedValue)
	case e.sensitiveValue(val):
		e.Encoder.AddString(key, "[REDACTED:pattern]")
	default:
		e.Encoder.AddString(key, val)
	}
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:      e.Encoder.Clone(),
		redactFields: e.redactFields,
		redactRegex:  e.redactRegex,
	}
}
