// Package archive exposes the snapshot archive facade. Callers depend on the
// domain.Archive interface; the concrete drivers stay behind the Open factory
// and the explicit constructors below.
package archive

import (
	"context"
	"fmt"
	"os"

	"chronicle/internal/blob"
	"chronicle/internal/infra/archive/blobarchive"
	"chronicle/internal/infra/archive/memory"
	"chronicle/internal/infra/archive/postgres"
	"chronicle/internal/infra/archive/sqlite"
	"chronicle/pkg/domain"
)

// Archive aliases the domain persistence contract.
type Archive = domain.Archive

// Driver identifies a concrete archive implementation.
type Driver string

const (
	DriverFS       Driver = "fs"       // encoded snapshot files via the blob layer
	DriverS3       Driver = "s3"       // encoded snapshot objects in S3
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
)

// Open selects an archive backend using environment variables.
// Defaults to fs when unset.
//
//	CHRONICLE_ARCHIVE_DRIVER: fs|s3|sqlite|postgres|memory (default fs)
//	CHRONICLE_SQLITE_PATH: path to sqlite file (default ./chronicle.db)
//	CHRONICLE_POSTGRES_DSN: postgres DSN when driver=postgres
//	(fs and s3 drivers read the CHRONICLE_BLOB_* variables)
func Open(ctx context.Context) (Archive, error) {
	driver := os.Getenv("CHRONICLE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFS)
	}
	switch Driver(driver) {
	case DriverFS:
		store, err := blob.NewFilesystem(os.Getenv("CHRONICLE_BLOB_FS_ROOT"))
		if err != nil {
			return nil, err
		}
		return blobarchive.New(store), nil
	case DriverS3:
		store, err := blob.OpenS3(ctx)
		if err != nil {
			return nil, err
		}
		return blobarchive.New(store), nil
	case DriverSQLite:
		return sqlite.NewStore(os.Getenv("CHRONICLE_SQLITE_PATH"))
	case DriverPostgres:
		return postgres.NewStore(os.Getenv("CHRONICLE_POSTGRES_DSN"))
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}

// NewBlob wraps an arbitrary blob store as a snapshot archive.
func NewBlob(store blob.Store) Archive { return blobarchive.New(store) }

// NewMemory returns an in-memory archive, typically for tests.
func NewMemory() Archive { return memory.New() }
