package engine

import (
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/syncerr"
)

// NoticeKind is the type of a user-facing status message.
type NoticeKind string

const (
	// NoticeCachedData means the list shown came from the local cache.
	NoticeCachedData NoticeKind = "cached_data"
	// NoticeOffline means a change was queued while offline.
	NoticeOffline NoticeKind = "offline"
	// NoticeError means a change failed and was reverted, or a queued
	// change was rejected by the service.
	NoticeError NoticeKind = "error"
	// NoticeSynced means a drain pass finished.
	NoticeSynced NoticeKind = "synced"
)

// Notice is a non-fatal status message for the UI layer.
type Notice struct {
	Kind    NoticeKind
	Scope   item.Scope
	Message string
	// Pending is the number of queued operations for Scope.
	Pending int
	// Error is set for NoticeError and, when a remote load failed, for
	// NoticeCachedData. Error.Retryable drives the retry affordance.
	Error *syncerr.Classification
}

func (n Notice) String() string {
	return n.Message
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

// Recorder is a Notifier that keeps every notice. It is safe for
// concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Last returns the most recent notice of kind.
func (r *Recorder) Last(kind NoticeKind) (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.notices) - 1; i >= 0; i-- {
		if r.notices[i].Kind == kind {
			return r.notices[i], true
		}
	}
	return Notice{}, false
}

func cachedDataNotice(scope item.Scope, pending int, cause *syncerr.Classification) Notice {
	return Notice{
		Kind:    NoticeCachedData,
		Scope:   scope,
		Message: "Showing cached data",
		Pending: pending,
		Error:   cause,
	}
}

func offlineNotice(scope item.Scope, pending int) Notice {
	return Notice{
		Kind:    NoticeOffline,
		Scope:   scope,
		Message: fmt.Sprintf("Offline: %d pending", pending),
		Pending: pending,
	}
}

func errorNotice(scope item.Scope, c syncerr.Classification) Notice {
	return Notice{
		Kind:    NoticeError,
		Scope:   scope,
		Message: c.Title + ": " + c.Message,
		Error:   &c,
	}
}

func syncedNotice(scope item.Scope, acked, remaining int) Notice {
	msg := fmt.Sprintf("Synced %d change(s)", acked)
	if remaining > 0 {
		msg += fmt.Sprintf(", %d still pending", remaining)
	}
	return Notice{Kind: NoticeSynced, Scope: scope, Message: msg, Pending: remaining}
}
