package domain

import (
	"errors"
	"fmt"
)

// ReadonlyError is returned when an assignment or deletion targets an
// attribute that was locked at first insertion.
type ReadonlyError struct {
	Name string
}

func (e ReadonlyError) Error() string {
	return fmt.Sprintf("attribute %q is readonly", e.Name)
}

// NotFoundError is returned when an operation references an attribute name
// absent from the container.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("attribute %q not found", e.Name)
}

// ErrEmptyName rejects operations addressed to an empty attribute name.
var ErrEmptyName = errors.New("attribute name cannot be empty")

// ErrDepthExceeded reports an attribute tree deeper than MaxTreeDepth.
// Cyclic attribute graphs are unsupported and surface as this error rather
// than unbounded recursion.
var ErrDepthExceeded = errors.New("attribute tree exceeds maximum depth")

// ErrSnapshotNotFound reports a load request for a snapshot reference that
// does not exist in the archive.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrEncode wraps failures while serializing a snapshot for storage.
var ErrEncode = errors.New("snapshot encode failed")

// ErrDecode wraps failures while deserializing a stored snapshot.
var ErrDecode = errors.New("snapshot decode failed")
