// Package filesystem stores images under a local directory.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pantry/internal/storage"
)

// Config holds filesystem backend settings.
type Config struct {
	// DataDir is the root directory objects are written under.
	DataDir string

	// MediaURL is the URL prefix the router serves DataDir at.
	MediaURL string
}

// Backend implements storage.Backend on the local filesystem.
type Backend struct {
	root     string
	mediaURL string
	logger   zerolog.Logger
}

// New creates the data directory if needed and returns a backend rooted at it.
func New(cfg Config, logger zerolog.Logger) (*Backend, error) {
	root, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	return &Backend{
		root:     root,
		mediaURL: cfg.MediaURL,
		logger:   logger.With().Str("component", "filesystem_storage").Logger(),
	}, nil
}

// Root returns the absolute data directory.
func (b *Backend) Root() string {
	return b.root
}

func (b *Backend) path(key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(b.root, filepath.FromSlash(key)), nil
}

// Put writes to a temporary file in the target directory and renames it
// into place, so readers never observe a partial image.
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	target, err := b.path(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, readerWithContext(ctx, reader))
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if size >= 0 && written != size {
		_ = tmp.Close()
		return fmt.Errorf("size mismatch: expected %d, wrote %d", size, written)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close object: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("failed to move object into place: %w", err)
	}
	tmpPath = ""

	b.logger.Debug().
		Str("key", key).
		Str("content_type", contentType).
		Int64("size", written).
		Msg("object stored")

	return nil
}

// Open opens the object stored under key.
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// Delete removes the object stored under key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists reports whether key is stored.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	p, err := b.path(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat object: %w", err)
}

// URL returns the media URL of key.
func (b *Backend) URL(key string) string {
	return storage.JoinURL(b.mediaURL, key)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ storage.Backend = (*Backend)(nil)
