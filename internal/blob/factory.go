package blob

import (
	"context"
	"fmt"
	"os"

	"chronicle/internal/infra/blob/s3"
)

// Open selects a blob.Store implementation using environment variables.
//
//	CHRONICLE_BLOB_DRIVER: fs|s3|memory (default fs)
//	CHRONICLE_BLOB_FS_ROOT: directory root when driver=fs (default ./snapshots)
//	(S3 specific variables documented in the s3 driver package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("CHRONICLE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("CHRONICLE_BLOB_FS_ROOT"))
	case DriverS3:
		return s3.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
