// Package core implements the history manager: a linear, append-only
// sequence of snapshots with a cursor, bound to exactly one container, plus
// an instrumented service wrapper around it.
package core

import "chronicle/pkg/domain"

type (
	// Container aliases domain.Container, the mutable state being tracked.
	Container = domain.Container
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
	// Label aliases domain.Label, the audit metadata attached per entry.
	Label = domain.Label
	// Archive aliases domain.Archive for durable snapshot persistence.
	Archive = domain.Archive
	// Value aliases domain.Value.
	Value = domain.Value
)
