package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// tempPrefix marks in-flight writes. Dot files are skipped by stats and
// never served.
const tempPrefix = ".tmp-"

// Backend is a filesystem implementation of the simplemedia.BlobStore interface
type Backend struct {
	baseDir  string
	filePerm os.FileMode
}

// Config options for the filesystem backend
type Config struct {
	BaseDir  string      // Storage root; must already exist
	FilePerm os.FileMode // Permission of stored files (default 0644)
}

// New creates a new filesystem storage backend. Folder directories are
// provisioned at startup, never by Put.
func New(config Config) (simplemedia.BlobStore, error) {
	return newBackend(config)
}

func newBackend(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	info, err := os.Stat(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("storage root unavailable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %s is not a directory", config.BaseDir)
	}
	if config.FilePerm == 0 {
		config.FilePerm = 0o644
	}
	return &Backend{
		baseDir:  config.BaseDir,
		filePerm: config.FilePerm,
	}, nil
}

// path maps a slash-separated key to a path under the base directory
func (b *Backend) path(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(b.baseDir, rel), nil
}

// Put writes to a temporary file in the destination directory and renames
// it into place, so readers observe either no file or the complete file.
// The returned size is read back from the filesystem.
func (b *Backend) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	filePath, err := b.path(key)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(filePath)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return 0, fmt.Errorf("folder directory %s is not provisioned", filepath.Base(dir))
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpPath, b.filePerm); err != nil {
		return 0, fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	committed = true

	info, err := os.Stat(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat stored file: %w", err)
	}
	if info.Size() != written {
		os.Remove(filePath)
		return 0, fmt.Errorf("short write: %d of %d bytes on disk", info.Size(), written)
	}
	return info.Size(), nil
}

// Delete removes the file for key. A missing file reports ErrObjectNotFound.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", simplemedia.ErrObjectNotFound, key)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
