// Package memory provides an in-memory snapshot archive used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"chronicle/pkg/domain"
)

var _ domain.Archive = (*Store)(nil)

type record struct {
	snapshot domain.Snapshot
	label    domain.Label
	size     int64
}

// Store keeps named snapshots in process memory. Stored snapshots are deep
// copied on the way in and out so callers cannot alias archived state.
type Store struct {
	mu      sync.RWMutex
	records map[string]record
}

// New returns an empty in-memory archive.
func New() *Store {
	return &Store{records: make(map[string]record)}
}

// Save stores a deep copy of the snapshot under name, replacing any previous
// snapshot with the same name. The returned reference equals the name.
func (s *Store) Save(_ context.Context, name string, snapshot domain.Snapshot, label domain.Label) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("snapshot name cannot be empty")
	}
	entries, err := snapshot.Entries()
	if err != nil {
		return "", err
	}
	copied, err := domain.RebuildSnapshot(entries)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[name] = record{snapshot: copied, label: label, size: int64(copied.Len())}
	return name, nil
}

// Load returns a deep copy of the snapshot stored under ref.
func (s *Store) Load(_ context.Context, ref string) (domain.Snapshot, domain.Label, error) {
	s.mu.RLock()
	rec, ok := s.records[ref]
	s.mu.RUnlock()
	if !ok {
		return domain.Snapshot{}, domain.Label{}, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, ref)
	}
	entries, err := rec.snapshot.Entries()
	if err != nil {
		return domain.Snapshot{}, domain.Label{}, err
	}
	copied, err := domain.RebuildSnapshot(entries)
	if err != nil {
		return domain.Snapshot{}, domain.Label{}, err
	}
	return copied, rec.label, nil
}

// List enumerates stored snapshots ordered by name.
func (s *Store) List(_ context.Context) ([]domain.ArchiveInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ArchiveInfo, 0, len(s.records))
	for name, rec := range s.records {
		out = append(out, domain.ArchiveInfo{Name: name, Ref: name, Label: rec.label, Size: rec.size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the named snapshot, reporting whether it existed.
func (s *Store) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[name]; !ok {
		return false, nil
	}
	delete(s.records, name)
	return true, nil
}
