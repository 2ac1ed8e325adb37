package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/remote"
	"github.com/fyrsmithlabs/listsync/internal/syncerr"
)

var _ remote.Service = (*fakeService)(nil)

// fakeService is an in-memory remote.Service with failure injection.
type fakeService struct {
	mu     sync.Mutex
	items  []item.Item
	calls  []string
	nextID int

	// failWith, when set, is consulted before every call. A non-nil error
	// fails the call.
	failWith func(method string) error

	// gate, when set, blocks Toggle until closed. entered is signalled
	// once the call is blocked.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeService(items ...item.Item) *fakeService {
	return &fakeService{items: items}
}

func (f *fakeService) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.failWith
	f.mu.Unlock()
	if hook != nil {
		method, _, _ := cut(call)
		return hook(method)
	}
	return nil
}

func cut(call string) (string, string, bool) {
	return strings.Cut(call, " ")
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeService) count(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if m, _, _ := cut(c); m == method {
			n++
		}
	}
	return n
}

func (f *fakeService) List(ctx context.Context, scope item.Scope) ([]item.Item, error) {
	if err := f.record("List " + scope.String()); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]item.Item, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeService) Create(ctx context.Context, scope item.Scope, text string, priority item.Priority) (item.Item, error) {
	if err := f.record("Create " + text); err != nil {
		return item.Item{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	it := item.Item{
		ID:        fmt.Sprintf("srv-%d", f.nextID),
		Scope:     scope,
		Text:      text,
		Priority:  priority.OrDefault(),
		CreatedAt: now,
		UpdatedAt: now,
		Sync:      item.Clean(),
	}
	f.items = append(f.items, it)
	return it, nil
}

func (f *fakeService) Update(ctx context.Context, id, text string) (item.Item, error) {
	if err := f.record("Update " + id); err != nil {
		return item.Item{}, err
	}
	return f.modify(id, func(it *item.Item) { it.Text = text })
}

func (f *fakeService) Toggle(ctx context.Context, id string) (item.Item, error) {
	if f.gate != nil {
		if f.entered != nil {
			f.entered <- struct{}{}
		}
		<-f.gate
	}
	if err := f.record("Toggle " + id); err != nil {
		return item.Item{}, err
	}
	return f.modify(id, func(it *item.Item) { it.Completed = !it.Completed })
}

func (f *fakeService) Delete(ctx context.Context, id string) error {
	if err := f.record("Delete " + id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if it.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return &syncerr.HTTPError{StatusCode: 404, Method: "DELETE", Path: "/items/" + id, Message: "item not found"}
}

func (f *fakeService) modify(id string, fn func(*item.Item)) (item.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			fn(&f.items[i])
			return f.items[i], nil
		}
	}
	return item.Item{}, &syncerr.HTTPError{StatusCode: 404, Method: "PATCH", Path: "/items/" + id, Message: "item not found"}
}

func (f *fakeService) snapshot() []item.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]item.Item, len(f.items))
	copy(out, f.items)
	return out
}
