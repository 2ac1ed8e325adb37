package item

import (
	"fmt"
	"time"
)

// OpType is the kind of a deferred mutation.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpToggle OpType = "toggle"
	OpDelete OpType = "delete"
)

// Valid reports whether t is a known operation type.
func (t OpType) Valid() bool {
	switch t {
	case OpCreate, OpUpdate, OpToggle, OpDelete:
		return true
	}
	return false
}

// Payload carries the data needed to replay an operation.
type Payload struct {
	Text     string   `json:"text,omitempty"`
	Priority Priority `json:"priority,omitempty"`
}

// PendingOperation is a mutation the remote service has not acknowledged.
type PendingOperation struct {
	ID         string    `json:"id"`
	Type       OpType    `json:"type"`
	TargetID   string    `json:"targetId"`
	Scope      Scope     `json:"scope"`
	Payload    Payload   `json:"payload"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
}

// Validate checks that a loaded or enqueued operation is replayable.
func (op PendingOperation) Validate() error {
	if op.ID == "" {
		return fmt.Errorf("operation id is empty")
	}
	if !op.Type.Valid() {
		return fmt.Errorf("operation %s: unknown type %q", op.ID, op.Type)
	}
	if op.TargetID == "" {
		return fmt.Errorf("operation %s: target id is empty", op.ID)
	}
	if err := op.Scope.Validate(); err != nil {
		return fmt.Errorf("operation %s: %w", op.ID, err)
	}
	if op.Type == OpCreate || op.Type == OpUpdate {
		if err := ValidateText(op.Payload.Text); err != nil {
			return fmt.Errorf("operation %s: %w", op.ID, err)
		}
	}
	return nil
}

// CacheRecord is the persisted snapshot of one scope's list.
type CacheRecord struct {
	Items   []Item    `json:"items"`
	UserID  string    `json:"userId"`
	ListID  string    `json:"scope"`
	SavedAt time.Time `json:"savedAt"`
}

// Matches reports whether the record and every item in it belong to s.
func (r CacheRecord) Matches(s Scope) bool {
	if r.UserID != s.UserID || r.ListID != s.ListID {
		return false
	}
	for _, it := range r.Items {
		if !it.InScope(s) {
			return false
		}
	}
	return true
}
