package item

import "fmt"

// SyncStatus is the coarse sync tag of an item.
type SyncStatus string

const (
	StatusClean      SyncStatus = "clean"
	StatusOptimistic SyncStatus = "optimistic"
	StatusNeedsSync  SyncStatus = "needs_sync"
)

// Action is the in-flight mutation carried by an optimistic item.
type Action string

const (
	ActionCreating Action = "creating"
	ActionUpdating Action = "updating"
	ActionDeleting Action = "deleting"
)

// SyncState is local-only bookkeeping. It is never sent to the remote
// service. Action is set only when Status is StatusOptimistic.
type SyncState struct {
	Status SyncStatus `json:"status"`
	Action Action     `json:"action,omitempty"`
}

// Clean returns the state of an item that matches the remote service.
func Clean() SyncState { return SyncState{Status: StatusClean} }

// NeedsSync returns the state of an item with queued, unacknowledged changes.
func NeedsSync() SyncState { return SyncState{Status: StatusNeedsSync} }

// Optimistic returns the state of an item with a remote call in flight.
func Optimistic(a Action) SyncState {
	return SyncState{Status: StatusOptimistic, Action: a}
}

func (s SyncState) IsClean() bool      { return s.Status == StatusClean || s.Status == "" }
func (s SyncState) IsOptimistic() bool { return s.Status == StatusOptimistic }
func (s SyncState) IsNeedsSync() bool  { return s.Status == StatusNeedsSync }

func (s SyncState) String() string {
	if s.IsOptimistic() {
		return fmt.Sprintf("%s(%s)", s.Status, s.Action)
	}
	if s.Status == "" {
		return string(StatusClean)
	}
	return string(s.Status)
}
