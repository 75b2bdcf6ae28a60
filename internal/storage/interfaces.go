// Package storage defines the backends recipe images are written to.
// Objects are addressed by key, a slash-separated relative path such as
// "uploads/recipe/3f2a....png".
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrObjectNotFound indicates the key has no stored object.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidKey indicates a key that is empty, absolute or escapes the root.
	ErrInvalidKey = errors.New("invalid object key")
)

// Backend defines the interface for image storage backends.
// Implementations include the local filesystem, S3 and MinIO.
type Backend interface {
	// Put stores size bytes from reader under key, replacing any object
	// already stored there.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - key: Object key produced by ImageKey
	//   - reader: Source of the content
	//   - size: Content length in bytes, or -1 if unknown
	//   - contentType: MIME type recorded with the object
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Open returns the object stored under key. The caller must close it.
	// Returns ErrObjectNotFound if nothing is stored there.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns the public URL clients fetch the object from.
	URL(key string) string
}
