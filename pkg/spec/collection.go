package spec

import "fmt"

// Named is implemented by every entry type stored in a Collection.
type Named interface {
	// Name returns the entry name. Names are fixed at construction
	// time and never change while the entry is in a collection.
	Name() string
}

// Collection is an append-only, ordered set of named entries with
// unique names. Entries are addressable both by insertion position and
// by name, and a position, once assigned, identifies the same entry
// forever. The zero value is an empty collection ready for use.
type Collection[T Named] struct {
	items []T
	index map[string]int
}

// add appends item to the collection. It rejects empty and duplicate
// names. Mutation is internal: each owning node exposes its own
// validated Add operation.
func (c *Collection[T]) add(item T) error {
	name := item.Name()
	if name == "" {
		return newError(KindInvalidValue, "name", "", "name must not be empty")
	}
	if _, ok := c.index[name]; ok {
		return newError(KindDuplicateName, "name", name, "name already in use")
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	c.index[name] = len(c.items)
	c.items = append(c.items, item)
	return nil
}

// Len returns the number of entries.
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// Has reports whether an entry with the given name exists.
func (c *Collection[T]) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Get returns the entry with the given name.
func (c *Collection[T]) Get(name string) (T, error) {
	var zero T
	i, ok := c.index[name]
	if !ok {
		return zero, newError(KindNotFound, "name", name, "no entry with this name")
	}
	return c.items[i], nil
}

// At returns the entry at position i. Positions are assigned in
// insertion order, starting at zero.
func (c *Collection[T]) At(i int) (T, error) {
	var zero T
	if i < 0 || i >= len(c.items) {
		return zero, newError(KindNotFound, "index", fmt.Sprintf("%d", i), "index out of range")
	}
	return c.items[i], nil
}

// IndexOf returns the position of the entry with the given name.
func (c *Collection[T]) IndexOf(name string) (int, error) {
	i, ok := c.index[name]
	if !ok {
		return 0, newError(KindNotFound, "name", name, "no entry with this name")
	}
	return i, nil
}

// All returns the entries in insertion order. The returned slice is a
// snapshot: appending to the collection afterwards does not affect it.
func (c *Collection[T]) All() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}
