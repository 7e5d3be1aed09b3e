package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotExist reports a missing blob key.
var ErrNotExist = errors.New("blob not found")

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) // fs returns "file://..." for dev
}
