package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/turtacn/cakeys/internal/domain/service"
)

// MemoryStorage keeps blobs in process memory. Used by tests and the
// throw-away CLI mode.
type MemoryStorage struct {
	alias string
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStorage(alias string) *MemoryStorage {
	return &MemoryStorage{alias: alias, blobs: make(map[string][]byte)}
}

var _ service.Storage = (*MemoryStorage)(nil)

func (s *MemoryStorage) Alias() string { return s.alias }

func (s *MemoryStorage) Location(name string) string {
	return fmt.Sprintf("memory://%s/%s", s.alias, name)
}

func (s *MemoryStorage) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[clean] = bytes.Clone(data)
	return clean, nil
}

func (s *MemoryStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.blobs[clean]
	s.mu.RUnlock()
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: s.Location(clean), Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStorage) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	clean, err := cleanName(name)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[clean]
	return ok, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, clean)
	return nil
}
