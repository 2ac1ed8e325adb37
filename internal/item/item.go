// Package item defines the list-item data model shared by the sync engine,
// its persistence layer and the remote client.
package item

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxTextLength is the maximum item text length in Unicode code points.
const MaxTextLength = 200

// TemporaryIDPrefix marks ids assigned locally before the remote service
// has acknowledged a create.
const TemporaryIDPrefix = "tmp-"

var (
	// ErrEmptyText is returned when item text is empty or whitespace only.
	ErrEmptyText = errors.New("item text cannot be empty")

	// ErrTextTooLong is returned when item text exceeds MaxTextLength.
	ErrTextTooLong = fmt.Errorf("item text exceeds %d characters", MaxTextLength)

	// ErrInvalidScope is returned when a scope is missing its user or list id.
	ErrInvalidScope = errors.New("scope requires user id and list id")
)

// Scope identifies the owning user and list. Items never cross scope.
type Scope struct {
	UserID string `json:"userId"`
	ListID string `json:"scope"`
}

// Validate checks that both parts of the scope are present.
func (s Scope) Validate() error {
	if strings.TrimSpace(s.UserID) == "" || strings.TrimSpace(s.ListID) == "" {
		return ErrInvalidScope
	}
	return nil
}

func (s Scope) String() string {
	return s.UserID + "/" + s.ListID
}

// Priority of an item.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// OrDefault returns p, or PriorityMedium when p is empty or unknown.
func (p Priority) OrDefault() Priority {
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

// Item is a single todo entry.
type Item struct {
	ID        string    `json:"id"`
	Scope     Scope     `json:"scope"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Sync      SyncState `json:"sync"`
}

// InScope reports whether the item belongs to s.
func (i Item) InScope(s Scope) bool {
	return i.Scope == s
}

// NewTemporaryID returns a locally unique id for an unacknowledged create.
func NewTemporaryID() string {
	return TemporaryIDPrefix + uuid.NewString()
}

// IsTemporaryID reports whether id was assigned locally.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TemporaryIDPrefix)
}

// ValidateText enforces the non-empty and length rules on item text.
// Length is counted in code points, not bytes.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}
