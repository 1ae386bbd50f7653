package blob

import (
	"context"
	"fmt"

	"testrig/internal/infra/blob/fs"
	memorystore "testrig/internal/infra/blob/memory"
	infraS3 "testrig/internal/infra/blob/s3"
)

// S3Config configures the S3-compatible backend.
type S3Config = infraS3.Config

// Config selects and configures a certificate artifact backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the configured store. An empty driver selects fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return infraS3.New(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewMemory returns a process-local store for tests and ephemeral runs.
func NewMemory() Store { return memorystore.New() }
