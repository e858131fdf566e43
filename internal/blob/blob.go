// Package blob exposes the blob storage facade. Callers depend on the Store
// interface defined here; the concrete infra-backed drivers stay behind the
// Open factory so the rest of the module never imports them directly.
package blob

import (
	"context"

	"chronicle/internal/infra/blob/core"
	"chronicle/internal/infra/blob/fs"
	"chronicle/internal/infra/blob/memory"
	"chronicle/internal/infra/blob/s3"
)

// Store is the byte-oriented blob contract implemented by every driver.
type Store = core.Store

// Driver identifies a blob backend implementation.
type Driver = core.Driver

// Info describes a stored blob.
type Info = core.Info

// PutOptions carries optional parameters for Store.Put.
type PutOptions = core.PutOptions

// Drivers supported by Open.
const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// ErrNotExist is returned when a requested blob key is absent.
var ErrNotExist = core.ErrNotExist

// NewFilesystem returns a filesystem-backed store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns an in-memory store, typically for tests.
func NewMemory() Store { return memory.New() }

// NewS3ForTests returns the mock-backed S3 store used in tests.
func NewS3ForTests() Store { return s3.NewMockForTests() }

// OpenS3 returns an S3-backed store configured from environment variables.
func OpenS3(ctx context.Context) (Store, error) { return s3.OpenFromEnv(ctx) }
