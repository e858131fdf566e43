package domain

import (
	"context"
	"time"
)

// Label is observational metadata attached to each history entry and to
// archived snapshots: a monotonically increasing sequence number, a
// wall-clock timestamp, and an optional free-text description. Labels are
// never consulted for control decisions.
type Label struct {
	Seq         uint64    `json:"seq"`
	At          time.Time `json:"at"`
	Description string    `json:"description,omitempty"`
}

// ArchiveInfo describes one stored snapshot within an archive listing.
type ArchiveInfo struct {
	Name  string `json:"name"`
	Ref   string `json:"ref"`
	Label Label  `json:"label"`
	Size  int64  `json:"size_bytes,omitempty"`
}

// Archive is a minimal abstraction over durable snapshot backends. Save must
// write durably before returning; a failed Save leaves the backend without a
// partial entry. Load of an unknown reference fails with an error wrapping
// ErrSnapshotNotFound before any decode is attempted.
type Archive interface {
	// Save persists the snapshot under the caller-supplied name and returns
	// an opaque reference usable with Load. Saving an existing name
	// overwrites the stored snapshot.
	Save(ctx context.Context, name string, snapshot Snapshot, label Label) (string, error)
	// Load retrieves a previously saved snapshot by reference.
	Load(ctx context.Context, ref string) (Snapshot, Label, error)
	// List enumerates stored snapshots ordered by name.
	List(ctx context.Context) ([]ArchiveInfo, error)
	// Delete removes a stored snapshot; it reports whether one existed.
	Delete(ctx context.Context, name string) (bool, error)
}
