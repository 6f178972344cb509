package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// ListFunc receives listed objects one at a time. Returning an error stops the
// listing and that error is returned by ListObjects unchanged.
type ListFunc func(ObjectInfo) error

// Client is the object store capability the namespace layer is built on.
// Implementations must be safe for concurrent use.
type Client interface {
	// ListObjects streams every key under prefix. Without recursive only direct
	// children are returned and deeper levels collapse into IsPrefix entries.
	ListObjects(ctx context.Context, bucket, prefix string, recursive bool, fn ListFunc) error

	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
	CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error
	RemoveObject(ctx context.Context, bucket, key string) error

	// RemoveObjects deletes keys in batches and reports the keys that could not
	// be deleted. A non-nil error means no batch could be attempted at all.
	RemoveObjects(ctx context.Context, bucket string, keys []string) ([]DeleteError, error)

	PresignGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)

	// ObjectURL is the unsigned address of key, as the store would serve it
	ObjectURL(bucket, key string) string

	// Ping verifies the bucket is reachable
	Ping(ctx context.Context, bucket string) error
}

// NewClient creates the object store client selected by configuration
func NewClient(cfg Config) (Client, error) {
	switch cfg.Backend {
	case "s3", "":
		return NewS3Client(cfg), nil
	case "memory":
		m := NewMemoryClient(cfg.URL())
		m.CreateBucket(cfg.Bucket)
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
