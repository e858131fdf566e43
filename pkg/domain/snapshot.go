package domain

import "fmt"

// SnapshotEntry is one frozen attribute within a snapshot: the name, the
// readonly flag as it stood at capture time, and a detached copy of the
// value. Storage codecs traverse entries to serialize a snapshot and hand
// them back to RebuildSnapshot when deserializing.
type SnapshotEntry struct {
	Name     string
	Readonly bool
	Value    Value
}

// Snapshot is an immutable, fully detached deep copy of a container's
// attribute tree at one instant. Mutating the source container after capture
// is never observable through the snapshot, and copies handed out by
// Materialize never share structure with each other or with the snapshot.
//
// Snapshots are created only by Container.Capture (or rebuilt by a storage
// decoder) and never mutated afterwards.
type Snapshot struct {
	entries []SnapshotEntry
}

// Len returns the number of top-level attributes captured.
func (s Snapshot) Len() int { return len(s.entries) }

// Entries returns a fresh deep copy of the frozen attribute entries. Each
// call detaches anew so callers can never alias the snapshot's backing tree.
func (s Snapshot) Entries() ([]SnapshotEntry, error) {
	return cloneEntries(s.entries, 0)
}

// Materialize builds a fresh detached container from the snapshot. Every
// call returns an independent deep copy; two materializations never share
// structure, so independent restores cannot bleed into one another.
func (s Snapshot) Materialize() (*Container, error) {
	entries, err := cloneEntries(s.entries, 0)
	if err != nil {
		return nil, err
	}
	c := &Container{entries: make(map[string]attribute, len(entries))}
	for _, entry := range entries {
		c.order = append(c.order, entry.Name)
		c.entries[entry.Name] = attribute{value: entry.Value, readonly: entry.Readonly}
	}
	return c, nil
}

// Equal reports whether two snapshots capture structurally identical trees,
// including readonly flags and attribute order.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.entries) != len(other.entries) {
		return false
	}
	for i, entry := range s.entries {
		peer := other.entries[i]
		if entry.Name != peer.Name || entry.Readonly != peer.Readonly || !entry.Value.Equal(peer.Value) {
			return false
		}
	}
	return true
}

// RebuildSnapshot reconstructs a snapshot from decoded entries. The entries
// are deep-copied in, so the caller's structures remain independent of the
// returned snapshot.
func RebuildSnapshot(entries []SnapshotEntry) (Snapshot, error) {
	cloned, err := cloneEntries(entries, 0)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{entries: cloned}, nil
}

func cloneEntries(entries []SnapshotEntry, depth int) ([]SnapshotEntry, error) {
	if depth >= MaxTreeDepth {
		return nil, fmt.Errorf("%w at depth %d", ErrDepthExceeded, depth)
	}
	out := make([]SnapshotEntry, len(entries))
	for i, entry := range entries {
		value, err := entry.Value.cloneDepth(depth + 1)
		if err != nil {
			return nil, err
		}
		out[i] = SnapshotEntry{Name: entry.Name, Readonly: entry.Readonly, Value: value}
	}
	return out, nil
}
