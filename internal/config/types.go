package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a non-negative time.Duration decoded from a Go duration
// string ("1.5s") or a bare integer, read as milliseconds, so that
// LISTSYNC_SYNC_DELETE_DELAY=300 means 300ms.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))

	var parsed time.Duration
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		parsed = time.Duration(ms) * time.Millisecond
	} else if parsed, err = time.ParseDuration(s); err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", s)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// redacted stands in for a secret wherever it would be printed or
// serialized.
const redacted = "[REDACTED]"

// Secret holds a credential such as the list service bearer token.
// Only Value exposes the raw string.
type Secret string

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a secret was configured.
func (s Secret) IsSet() bool { return s != "" }

func (s Secret) String() string {
	if !s.IsSet() {
		return ""
	}
	return redacted
}

// GoString keeps %#v from printing the raw value.
func (s Secret) GoString() string {
	return fmt.Sprintf("config.Secret(%q)", s.String())
}

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The placeholder
// decodes to the empty secret, so a dumped config never yields a token.
func (s *Secret) UnmarshalText(text []byte) error {
	raw := string(text)
	if raw == redacted {
		raw = ""
	}
	*s = Secret(raw)
	return nil
}

// UnmarshalJSON decodes a JSON string through UnmarshalText.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("secret must be a string: %w", err)
	}
	return s.UnmarshalText([]byte(raw))
}
