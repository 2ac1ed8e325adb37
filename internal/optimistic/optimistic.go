// Package optimistic applies user intents to an immutable list before the
// remote service has confirmed them.
package optimistic

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/listsync/internal/item"
)

var (
	// ErrItemBusy is returned for an intent on an item that already has a
	// remote call in flight.
	ErrItemBusy = errors.New("item has a change in progress")

	// ErrItemNotFound is returned for an intent on an unknown id.
	ErrItemNotFound = errors.New("item not found in list")
)

// Kind is the type of user intent.
type Kind string

const (
	KindCreate Kind = "create"
	KindToggle Kind = "toggle"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Intent is a user-requested change.
type Intent struct {
	Kind     Kind
	ID       string // target id; ignored for create
	Scope    item.Scope
	Text     string
	Priority item.Priority
}

// Create returns a create intent. An empty priority means medium.
func Create(scope item.Scope, text string, priority item.Priority) Intent {
	return Intent{Kind: KindCreate, Scope: scope, Text: text, Priority: priority}
}

// Toggle returns a toggle intent.
func Toggle(id string) Intent { return Intent{Kind: KindToggle, ID: id} }

// Update returns an edit intent.
func Update(id, text string) Intent { return Intent{Kind: KindUpdate, ID: id, Text: text} }

// Delete returns a delete intent.
func Delete(id string) Intent { return Intent{Kind: KindDelete, ID: id} }

// Apply returns a new list with intent applied and the affected item tagged
// optimistic. The input list is never modified and serves as the rollback
// snapshot. Invalid intents return an error and no list.
func Apply(list item.List, in Intent, now time.Time) (item.List, item.Item, error) {
	switch in.Kind {
	case KindCreate:
		if err := in.Scope.Validate(); err != nil {
			return item.List{}, item.Item{}, err
		}
		if err := item.ValidateText(in.Text); err != nil {
			return item.List{}, item.Item{}, err
		}
		it := item.Item{
			ID:        item.NewTemporaryID(),
			Scope:     in.Scope,
			Text:      in.Text,
			Priority:  in.Priority.OrDefault(),
			CreatedAt: now,
			UpdatedAt: now,
			Sync:      item.Optimistic(item.ActionCreating),
		}
		return list.With(it), it, nil

	case KindToggle, KindUpdate, KindDelete:
		it, err := target(list, in.ID)
		if err != nil {
			return item.List{}, item.Item{}, err
		}
		switch in.Kind {
		case KindToggle:
			it.Completed = !it.Completed
			it.Sync = item.Optimistic(item.ActionUpdating)
		case KindUpdate:
			if err := item.ValidateText(in.Text); err != nil {
				return item.List{}, item.Item{}, err
			}
			it.Text = in.Text
			it.Sync = item.Optimistic(item.ActionUpdating)
		case KindDelete:
			it.Sync = item.Optimistic(item.ActionDeleting)
		}
		if in.Kind != KindDelete {
			it.UpdatedAt = now
		}
		return list.With(it), it, nil
	}
	return item.List{}, item.Item{}, fmt.Errorf("unknown intent %q", in.Kind)
}

func target(list item.List, id string) (item.Item, error) {
	it, ok := list.Get(id)
	if !ok {
		return item.Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if it.Sync.IsOptimistic() {
		return item.Item{}, fmt.Errorf("%w: %s is %s", ErrItemBusy, id, it.Sync)
	}
	return it, nil
}

// Reconcile replaces the local copy identified by localID with the
// canonical item returned by the service and marks it clean. The item
// keeps its display position.
func Reconcile(list item.List, localID string, canonical item.Item) item.List {
	canonical.Sync = item.Clean()
	return list.Replace(localID, canonical)
}

// MarkNeedsSync tags id as waiting for a queued replay.
func MarkNeedsSync(list item.List, id string) item.List {
	return setState(list, id, item.NeedsSync())
}

// MarkClean tags id as matching the service.
func MarkClean(list item.List, id string) item.List {
	return setState(list, id, item.Clean())
}

// Rename moves an item from a temporary id to its canonical id.
func Rename(list item.List, from, to string) item.List {
	it, ok := list.Get(from)
	if !ok {
		return list
	}
	it.ID = to
	return list.Replace(from, it)
}

// Remove drops id from the list.
func Remove(list item.List, id string) item.List {
	return list.Without(id)
}

func setState(list item.List, id string, s item.SyncState) item.List {
	it, ok := list.Get(id)
	if !ok {
		return list
	}
	it.Sync = s
	return list.With(it)
}
