// Package blobstore keeps binary objects (pictures, videos) and resolves
// download URLs for them.
package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when no object exists for a key
var ErrNotFound = errors.New("blobstore: object not found")

// Storage defines blob storage operations
type Storage interface {
	// Write stores content from r under key. size is -1 when unknown.
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read opens the content stored under key. The caller closes it.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content stored under key
	Delete(ctx context.Context, key string) error

	// Exists checks whether content is stored under key
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a URL the content can be downloaded from.
	// Signed URLs stay valid for expires.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}
