// Package state holds the pure reducer behind the client-side mirrors of
// projects and tasks.
package state

// Keyed is any resource identified by a string id.
type Keyed interface {
	Key() string
}

// Event is one change to a collection. The set is closed: Added, Replaced,
// Removed and ListReplaced.
type Event[T Keyed] interface {
	apply(items []T) []T
}

// Added puts a newly created item at the front.
type Added[T Keyed] struct {
	Item T
}

// Replaced swaps the item with the same key. Unknown keys leave the collection unchanged.
type Replaced[T Keyed] struct {
	Item T
}

// Removed drops the item with the given key.
type Removed[T Keyed] struct {
	ID string
}

// ListReplaced discards the collection in favour of a freshly fetched one.
type ListReplaced[T Keyed] struct {
	Items []T
}

func (e Added[T]) apply(items []T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, e.Item)
	return append(out, items...)
}

func (e Replaced[T]) apply(items []T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		if item.Key() == e.Item.Key() {
			out[i] = e.Item
			continue
		}
		out[i] = item
	}
	return out
}

func (e Removed[T]) apply(items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item.Key() != e.ID {
			out = append(out, item)
		}
	}
	return out
}

func (e ListReplaced[T]) apply([]T) []T {
	out := make([]T, len(e.Items))
	copy(out, e.Items)
	return out
}

// Apply returns the collection after e. The input slice is never modified.
func Apply[T Keyed](items []T, e Event[T]) []T {
	return e.apply(items)
}

// ApplyCurrent tracks a single selected item through the same events: a
// replacement with its key updates it, a removal of its key clears it.
func ApplyCurrent[T Keyed](current *T, e Event[T]) *T {
	if current == nil {
		return nil
	}

	switch ev := e.(type) {
	case Replaced[T]:
		if ev.Item.Key() == (*current).Key() {
			item := ev.Item
			return &item
		}
	case Removed[T]:
		if ev.ID == (*current).Key() {
			return nil
		}
	}
	return current
}
