// Package blob stores export artifacts (CSV files, calendars, snapshots)
// behind a thin S3-like interface with filesystem, in-memory, and
// S3-compatible backends.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Driver identifies a blob backend.
type Driver string

const (
	// DriverFilesystem stores artifacts under a local directory (default).
	DriverFilesystem Driver = "fs"
	// DriverS3 targets AWS S3 or an S3-compatible endpoint such as MinIO.
	DriverS3 Driver = "s3"
	// DriverMemory keeps artifacts in process memory, for tests.
	DriverMemory Driver = "memory"
)

// PutOptions configures an artifact write.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configures URL pre-signing.
type SignedURLOptions struct {
	Method string        // only GET is supported
	Expiry time.Duration // default 15m
}

// Info describes a stored artifact.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is the artifact storage contract. Put is create-only: writing an
// existing key fails rather than silently replacing an exported artifact.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

// ErrUnsupported is returned when a backend lacks an optional capability.
var ErrUnsupported = errors.New("blob: unsupported operation")

// Open selects a Store from the environment.
//
//	FLOCKCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	FLOCKCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./exportdata)
//	(S3-specific variables documented in s3.go)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("FLOCKCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("FLOCKCORE_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown blob driver %s", driver)
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
