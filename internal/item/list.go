package item

// List is an immutable, ordered collection of items keyed by id.
//
// Every transformation returns a new List and leaves the receiver
// untouched, so a List can be kept as a rollback snapshot.
type List struct {
	order []string
	byID  map[string]Item
}

// NewList builds a List from items in display order. Later duplicates of
// an id replace earlier ones in place.
func NewList(items []Item) List {
	l := List{byID: make(map[string]Item, len(items))}
	for _, it := range items {
		if _, ok := l.byID[it.ID]; !ok {
			l.order = append(l.order, it.ID)
		}
		l.byID[it.ID] = it
	}
	return l
}

// Len returns the number of items.
func (l List) Len() int { return len(l.order) }

// Get returns the item with the given id.
func (l List) Get(id string) (Item, bool) {
	it, ok := l.byID[id]
	return it, ok
}

// Items returns a copy of the items in display order.
func (l List) Items() []Item {
	out := make([]Item, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}

// IDs returns item ids in display order.
func (l List) IDs() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// With returns a list with it appended, or replaced in place if its id
// already exists.
func (l List) With(it Item) List {
	next := l.clone()
	if _, ok := next.byID[it.ID]; !ok {
		next.order = append(next.order, it.ID)
	}
	next.byID[it.ID] = it
	return next
}

// Replace returns a list where the item with id is swapped for it. The
// replacement may carry a different id; its position is preserved. If id
// is absent the item is appended.
func (l List) Replace(id string, it Item) List {
	if _, ok := l.byID[id]; !ok {
		return l.With(it)
	}
	next := l.clone()
	delete(next.byID, id)
	if _, dup := next.byID[it.ID]; dup && it.ID != id {
		// the replacement id is already present: drop the old slot
		next.order = removeID(next.order, id)
	} else {
		for i, oid := range next.order {
			if oid == id {
				next.order[i] = it.ID
				break
			}
		}
	}
	next.byID[it.ID] = it
	return next
}

// Without returns a list with id removed.
func (l List) Without(id string) List {
	if _, ok := l.byID[id]; !ok {
		return l
	}
	next := l.clone()
	delete(next.byID, id)
	next.order = removeID(next.order, id)
	return next
}

// Filter returns the items for which keep returns true.
func (l List) Filter(keep func(Item) bool) List {
	var kept []Item
	for _, it := range l.Items() {
		if keep(it) {
			kept = append(kept, it)
		}
	}
	return NewList(kept)
}

func (l List) clone() List {
	next := List{
		order: make([]string, len(l.order), len(l.order)+1),
		byID:  make(map[string]Item, len(l.byID)+1),
	}
	copy(next.order, l.order)
	for k, v := range l.byID {
		next.byID[k] = v
	}
	return next
}

func removeID(order []string, id string) []string {
	out := order[:0]
	for _, oid := range order {
		if oid != id {
			out = append(out, oid)
		}
	}
	return out
}
