// Package storage provides the named blob stores that back the storages key backend.
package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/turtacn/cakeys/internal/domain/service"
	"github.com/turtacn/cakeys/pkg/errors"
)

const (
	dirPerm  fs.FileMode = 0o700
	filePerm fs.FileMode = 0o600
)

// FilesystemStorage stores blobs as files below a root directory.
type FilesystemStorage struct {
	alias string
	root  string
}

// NewFilesystemStorage creates a storage rooted at root. The directory is
// created lazily on first write.
func NewFilesystemStorage(alias, root string) (*FilesystemStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.ErrInvalidConfiguration(fmt.Sprintf("storage %q: invalid location %q", alias, root)).WithCause(err)
	}
	return &FilesystemStorage{alias: alias, root: abs}, nil
}

var _ service.Storage = (*FilesystemStorage)(nil)

func (s *FilesystemStorage) Alias() string { return s.alias }

// Location returns the absolute file path of name.
func (s *FilesystemStorage) Location(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Save writes data atomically: temp file, fsync, chmod, rename.
func (s *FilesystemStorage) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := atomicWriteFile(s.Location(clean), data, filePerm); err != nil {
		return "", errors.ErrStorageUnavailable(s.alias, err)
	}
	return clean, nil
}

func (s *FilesystemStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.Location(clean))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, errors.ErrStorageUnavailable(s.alias, err)
	}
	return f, nil
}

func (s *FilesystemStorage) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	clean, err := cleanName(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(s.Location(clean))
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, errors.ErrStorageUnavailable(s.alias, err)
	}
}

func (s *FilesystemStorage) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(s.Location(clean)); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.ErrStorageUnavailable(s.alias, err)
	}
	return nil
}

// atomicWriteFile replaces path with data without ever exposing a partial file.
// If the rename fails because the target is locked, it retries after removing
// the target.
func atomicWriteFile(target string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(target)
		if err2 := os.Rename(tmpPath, target); err2 != nil {
			return fmt.Errorf("rename: %v (after remove: %v)", err, err2)
		}
	}
	return nil
}

// cleanName normalises a slash separated relative blob name and rejects
// anything that would escape the storage root.
func cleanName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", errors.ErrInvalidKeyParameters(fmt.Sprintf("%q: invalid storage name", name))
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.ErrInvalidKeyParameters(fmt.Sprintf("%q: invalid storage name", name))
	}
	return clean, nil
}
