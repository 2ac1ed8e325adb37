package itemserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/listsync/internal/item"
)

// ErrNotFound is returned for an unknown item id.
var ErrNotFound = errors.New("item not found")

// Store is the in-memory item table behind the server. Mutations carrying
// an idempotency key that was already applied return the current state
// instead of applying twice.
type Store struct {
	mu    sync.Mutex
	items map[string]item.Item
	order []string
	// applied maps idempotency keys to the item they produced or touched.
	applied map[string]string
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		items:   make(map[string]item.Item),
		applied: make(map[string]string),
		now:     time.Now,
	}
}

// List returns the items owned by scope in creation order.
func (s *Store) List(scope item.Scope) []item.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]item.Item, 0)
	for _, id := range s.order {
		if it := s.items[id]; it.InScope(scope) {
			out = append(out, it)
		}
	}
	return out
}

// Create adds an item and returns it. The bool is false when key had
// already been applied.
func (s *Store) Create(scope item.Scope, text string, priority item.Priority, key string) (item.Item, bool, error) {
	if err := scope.Validate(); err != nil {
		return item.Item{}, false, err
	}
	if err := item.ValidateText(text); err != nil {
		return item.Item{}, false, err
	}
	if priority != "" && !priority.Valid() {
		return item.Item{}, false, fmt.Errorf("invalid priority %q", priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.applied[key]; ok && key != "" {
		if it, ok := s.items[id]; ok {
			return it, false, nil
		}
	}

	now := s.now().UTC()
	it := item.Item{
		ID:        uuid.NewString(),
		Scope:     scope,
		Text:      text,
		Priority:  priority.OrDefault(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[it.ID] = it
	s.order = append(s.order, it.ID)
	s.remember(key, it.ID)
	return it, true, nil
}

// Update replaces an item's text.
func (s *Store) Update(id, text, key string) (item.Item, error) {
	if err := item.ValidateText(text); err != nil {
		return item.Item{}, err
	}
	return s.modify(id, key, func(it *item.Item) { it.Text = text })
}

// Toggle flips an item's completed flag.
func (s *Store) Toggle(id, key string) (item.Item, error) {
	return s.modify(id, key, func(it *item.Item) { it.Completed = !it.Completed })
}

// Delete removes an item. A replayed key succeeds even though the item is
// already gone.
func (s *Store) Delete(id, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applied[key]; ok && key != "" {
		return nil
	}
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.items, id)
	for i, cur := range s.order {
		if cur == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.remember(key, id)
	return nil
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) modify(id, key string, fn func(*item.Item)) (item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return item.Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, seen := s.applied[key]; seen && key != "" {
		return it, nil
	}
	fn(&it)
	it.UpdatedAt = s.now().UTC()
	s.items[id] = it
	s.remember(key, id)
	return it, nil
}

func (s *Store) remember(key, id string) {
	if key != "" {
		s.applied[key] = id
	}
}
