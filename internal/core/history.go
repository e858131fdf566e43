package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// History boundary conditions. Both are expected, recoverable states rather
// than faults; callers probe the boundaries by attempting the move.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrNoArchive     = errors.New("no archive configured")
)

// LogEntry is one row of the observable history log.
type LogEntry struct {
	Label   Label
	Current bool
}

// History tracks a single container through a linear sequence of snapshots
// with a cursor. The sequence is append-only: a checkpoint taken after an
// undo appends at the tail and jumps the cursor there, so entries beyond the
// old cursor stay in the log as an audit trail but are no longer reachable
// by redo alone.
//
// A history is bound to exactly one container and registers itself as the
// container's commit observer, so every successful mutation of the container
// is checkpointed automatically. Like the container, a history is not
// internally synchronized.
type History struct {
	container *Container
	snapshots []Snapshot
	labels    []Label
	cursor    int
	seq       uint64
	archive   Archive
	nowFn     func() time.Time
}

// HistoryOption configures a History during construction.
type HistoryOption func(*History)

// WithArchive wires a durable snapshot archive into Save and Load.
func WithArchive(a Archive) HistoryOption {
	return func(h *History) { h.archive = a }
}

// WithClock overrides the label timestamp source, for tests.
func WithClock(fn func() time.Time) HistoryOption {
	return func(h *History) { h.nowFn = fn }
}

// NewHistory binds a history to the container, captures the initial snapshot
// labelled "Initial State" so undo always has a baseline, and registers the
// history as the container's commit observer.
func NewHistory(container *Container, opts ...HistoryOption) (*History, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	h := &History{container: container, nowFn: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	snapshot, err := container.Capture()
	if err != nil {
		return nil, err
	}
	h.appendEntry(snapshot, h.nextLabel("Initial State"))
	container.OnCommit(func(summary string) {
		// Capture cannot fail here below the depth limit; a container deep
		// enough to trip the guard is rejected at mutation time already.
		_, _ = h.Checkpoint(summary)
	})
	return h, nil
}

// Container returns the bound container.
func (h *History) Container() *Container { return h.container }

// Len returns the number of history entries.
func (h *History) Len() int { return len(h.snapshots) }

// Cursor returns the index of the entry the container currently reflects.
func (h *History) Cursor() int { return h.cursor }

func (h *History) nextLabel(description string) Label {
	label := Label{Seq: h.seq, At: h.nowFn().UTC(), Description: description}
	h.seq++
	return label
}

func (h *History) appendEntry(snapshot Snapshot, label Label) {
	h.snapshots = append(h.snapshots, snapshot)
	h.labels = append(h.labels, label)
	h.cursor = len(h.snapshots) - 1
}

// Checkpoint captures the container's current state, appends it at the tail
// and moves the cursor there. The returned label identifies the new entry.
func (h *History) Checkpoint(description string) (Label, error) {
	snapshot, err := h.container.Capture()
	if err != nil {
		return Label{}, err
	}
	label := h.nextLabel(description)
	h.appendEntry(snapshot, label)
	return label, nil
}

// Undo moves the cursor one entry back and restores that snapshot into the
// container. At the oldest entry it fails with ErrNothingToUndo and leaves
// history and container untouched.
func (h *History) Undo() error {
	if h.cursor == 0 {
		return ErrNothingToUndo
	}
	if err := h.restoreAt(h.cursor - 1); err != nil {
		return err
	}
	h.cursor--
	return nil
}

// Redo moves the cursor one entry forward and restores that snapshot. At the
// newest entry it fails with ErrNothingToRedo and changes nothing.
func (h *History) Redo() error {
	if h.cursor == len(h.snapshots)-1 {
		return ErrNothingToRedo
	}
	if err := h.restoreAt(h.cursor + 1); err != nil {
		return err
	}
	h.cursor++
	return nil
}

// restoreAt adopts the snapshot at index i with the commit observer detached
// so the restore itself is not checkpointed.
func (h *History) restoreAt(i int) error {
	h.container.OnCommit(nil)
	defer h.container.OnCommit(func(summary string) { _, _ = h.Checkpoint(summary) })
	return h.container.Restore(h.snapshots[i])
}

// Save captures the current state, persists it durably under name and then
// folds the snapshot into history at the tail. The archive write happens
// before any history mutation, so a storage failure leaves history and
// cursor exactly as they were.
func (h *History) Save(ctx context.Context, name string) (string, error) {
	if h.archive == nil {
		return "", ErrNoArchive
	}
	snapshot, err := h.container.Capture()
	if err != nil {
		return "", err
	}
	label := Label{Seq: h.seq, At: h.nowFn().UTC(), Description: fmt.Sprintf("Saved as %q", name)}
	ref, err := h.archive.Save(ctx, name, snapshot, label)
	if err != nil {
		return "", err
	}
	h.seq++
	h.appendEntry(snapshot, label)
	return ref, nil
}

// Load retrieves an archived snapshot by reference, restores it into the
// container and appends it to history with the cursor at the tail. A missing
// reference fails with an error wrapping domain.ErrSnapshotNotFound before
// any state changes.
func (h *History) Load(ctx context.Context, ref string) error {
	if h.archive == nil {
		return ErrNoArchive
	}
	snapshot, _, err := h.archive.Load(ctx, ref)
	if err != nil {
		return err
	}
	h.container.OnCommit(nil)
	err = h.container.Restore(snapshot)
	h.container.OnCommit(func(summary string) { _, _ = h.Checkpoint(summary) })
	if err != nil {
		return err
	}
	h.appendEntry(snapshot, h.nextLabel(fmt.Sprintf("Loaded %q", ref)))
	return nil
}

// Log returns the ordered history labels with the current entry marked.
func (h *History) Log() []LogEntry {
	out := make([]LogEntry, len(h.labels))
	for i, label := range h.labels {
		out[i] = LogEntry{Label: label, Current: i == h.cursor}
	}
	return out
}
