package domain

import (
	"fmt"
	"sort"
	"strings"
)

type attribute struct {
	value    Value
	readonly bool
}

// Container is a mutable, insertion-ordered bag of named attribute values.
// Attributes may themselves hold nested containers, forming a tree. Each
// entry carries a readonly flag set once at first insertion; a readonly
// attribute can never be reassigned or deleted for the lifetime of the
// container.
//
// Containers are not internally synchronized. Concurrent use of one
// container (or of a container and its bound history) requires external
// locking around every operation.
type Container struct {
	order    []string
	entries  map[string]attribute
	onCommit func(summary string)
}

// NewContainer constructs a container holding the provided initial
// attributes, applied in sorted name order. A nil map yields an empty
// container.
func NewContainer(attrs map[string]Value) *Container {
	c := &Container{entries: make(map[string]attribute)}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.put(name, attrs[name], false)
	}
	return c
}

// OnCommit registers fn as the container's commit observer. It is invoked
// synchronously after each successful mutation with a summary of what
// changed; batched mutations (SetMany, Delete) fire it exactly once for the
// whole batch. Passing nil detaches the observer. The container never owns
// the observer; it is a callback handle only.
func (c *Container) OnCommit(fn func(summary string)) {
	c.onCommit = fn
}

func (c *Container) put(name string, v Value, readonly bool) {
	if _, ok := c.entries[name]; !ok {
		c.order = append(c.order, name)
	}
	entry := c.entries[name]
	entry.value = v
	if readonly {
		entry.readonly = true
	}
	c.entries[name] = entry
}

// Set inserts or overwrites the named attribute. Assigning to a readonly
// attribute fails with ReadonlyError and leaves the stored value unchanged.
func (c *Container) Set(name string, value Value) error {
	if err := c.checkWritable(name); err != nil {
		return err
	}
	c.put(name, value, false)
	c.commit("set " + name)
	return nil
}

// SetReadonly inserts the named attribute and locks it permanently. Locking
// happens at first insertion; a second call for the same name fails with
// ReadonlyError since the attribute is already locked.
func (c *Container) SetReadonly(name string, value Value) error {
	if err := c.checkWritable(name); err != nil {
		return err
	}
	c.put(name, value, true)
	c.commit("set " + name + " (readonly)")
	return nil
}

func (c *Container) checkWritable(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if entry, ok := c.entries[name]; ok && entry.readonly {
		return ReadonlyError{Name: name}
	}
	return nil
}

// SetMany applies Set for every pair, in sorted name order. The batch is
// validated up front: if any target is readonly, nothing is written. On
// success the commit observer fires exactly once with a summary naming the
// changed attributes.
func (c *Container) SetMany(attrs map[string]Value) error {
	if len(attrs) == 0 {
		return nil
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.checkWritable(name); err != nil {
			return err
		}
	}
	for _, name := range names {
		c.put(name, attrs[name], false)
	}
	c.commit("set " + strings.Join(names, ", "))
	return nil
}

// Delete removes the named attributes. The batch is validated up front and
// rejected whole: a readonly name fails with ReadonlyError, a missing name
// with NotFoundError, and in either case no attribute is removed. On success
// the commit observer fires once describing the deletions.
func (c *Container) Delete(names ...string) error {
	if len(names) == 0 {
		return nil
	}
	for _, name := range names {
		entry, ok := c.entries[name]
		if !ok {
			return NotFoundError{Name: name}
		}
		if entry.readonly {
			return ReadonlyError{Name: name}
		}
	}
	for _, name := range names {
		c.remove(name)
	}
	c.commit("deleted " + strings.Join(names, ", "))
	return nil
}

func (c *Container) remove(name string) {
	delete(c.entries, name)
	for i, existing := range c.order {
		if existing == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Container) commit(summary string) {
	if c.onCommit != nil {
		c.onCommit(summary)
	}
}

// Get returns the named attribute value.
func (c *Container) Get(name string) (Value, error) {
	entry, ok := c.entries[name]
	if !ok {
		return Value{}, NotFoundError{Name: name}
	}
	return entry.value, nil
}

// Has reports whether the named attribute exists.
func (c *Container) Has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// IsReadonly reports whether the named attribute exists and is locked.
func (c *Container) IsReadonly(name string) bool {
	entry, ok := c.entries[name]
	return ok && entry.readonly
}

// Names returns the attribute names in insertion order.
func (c *Container) Names() []string {
	return append([]string(nil), c.order...)
}

// Len returns the number of attributes.
func (c *Container) Len() int { return len(c.entries) }

// Capture deep-copies the entire attribute tree, recursively including
// nested containers, and returns it as an immutable snapshot. The container
// is not modified.
func (c *Container) Capture() (Snapshot, error) {
	entries, err := c.snapshotEntries(0)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{entries: entries}, nil
}

func (c *Container) snapshotEntries(depth int) ([]SnapshotEntry, error) {
	if depth >= MaxTreeDepth {
		return nil, fmt.Errorf("%w at depth %d", ErrDepthExceeded, depth)
	}
	entries := make([]SnapshotEntry, 0, len(c.order))
	for _, name := range c.order {
		entry := c.entries[name]
		cloned, err := entry.value.cloneDepth(depth + 1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, SnapshotEntry{Name: name, Readonly: entry.readonly, Value: cloned})
	}
	return entries, nil
}

// Restore replaces the container's attribute set to match the snapshot.
// Where both the snapshot and the container hold a nested container under
// the same name, the restore recurses into the existing nested instance so
// external references to it stay valid. Every other attribute is replaced by
// a deep copy of the snapshot's value, and attributes absent from the
// snapshot are removed. Readonly flags are restored exactly as captured;
// restore is an internal adoption of prior state and bypasses write guards.
func (c *Container) Restore(snapshot Snapshot) error {
	return c.restoreEntries(snapshot.entries, 0)
}

func (c *Container) restoreEntries(entries []SnapshotEntry, depth int) error {
	if depth >= MaxTreeDepth {
		return fmt.Errorf("%w at depth %d", ErrDepthExceeded, depth)
	}
	keep := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		keep[entry.Name] = struct{}{}
	}
	for _, name := range c.Names() {
		if _, ok := keep[name]; !ok {
			c.remove(name)
		}
	}
	order := make([]string, 0, len(entries))
	for _, entry := range entries {
		order = append(order, entry.Name)
		if nested, ok := entry.Value.AsContainer(); ok && nested != nil {
			if existing, ok := c.nestedContainer(entry.Name); ok && existing != nil {
				nestedEntries, err := nested.snapshotEntries(depth + 1)
				if err != nil {
					return err
				}
				if err := existing.restoreEntries(nestedEntries, depth+1); err != nil {
					return err
				}
				c.setRestored(entry.Name, ContainerValue(existing), entry.Readonly)
				continue
			}
		}
		cloned, err := entry.Value.cloneDepth(depth + 1)
		if err != nil {
			return err
		}
		c.setRestored(entry.Name, cloned, entry.Readonly)
	}
	c.order = order
	return nil
}

// setRestored writes an attribute while adopting snapshot state, replacing
// the readonly flag rather than accumulating it.
func (c *Container) setRestored(name string, v Value, readonly bool) {
	if _, ok := c.entries[name]; !ok {
		c.order = append(c.order, name)
	}
	c.entries[name] = attribute{value: v, readonly: readonly}
}

func (c *Container) nestedContainer(name string) (*Container, bool) {
	entry, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	return entry.value.AsContainer()
}

func (c *Container) cloneDepth(depth int) (*Container, error) {
	if depth >= MaxTreeDepth {
		return nil, fmt.Errorf("%w at depth %d", ErrDepthExceeded, depth)
	}
	cloned := &Container{entries: make(map[string]attribute, len(c.entries))}
	for _, name := range c.order {
		entry := c.entries[name]
		value, err := entry.value.cloneDepth(depth + 1)
		if err != nil {
			return nil, err
		}
		cloned.order = append(cloned.order, name)
		cloned.entries[name] = attribute{value: value, readonly: entry.readonly}
	}
	return cloned, nil
}

func (c *Container) equal(other *Container) bool {
	if len(c.entries) != len(other.entries) {
		return false
	}
	for name, entry := range c.entries {
		peer, ok := other.entries[name]
		if !ok || entry.readonly != peer.readonly || !entry.value.Equal(peer.value) {
			return false
		}
	}
	return true
}

// String renders the attributes as name=value pairs in insertion order,
// recursing one level into nested containers. Bookkeeping state (readonly
// flags, the commit observer) is excluded.
func (c *Container) String() string {
	return "Container{" + c.summary() + "}"
}

func (c *Container) summary() string {
	parts := make([]string, 0, len(c.order))
	for _, name := range c.order {
		parts = append(parts, name+"="+c.entries[name].value.String())
	}
	return strings.Join(parts, ", ")
}
