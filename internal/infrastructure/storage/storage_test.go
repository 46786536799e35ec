package storage

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/cakeys/internal/domain/service"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
)

// runStorageContract exercises the behaviour every storage shares.
func runStorageContract(t *testing.T, s service.Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing blob", func(t *testing.T) {
		ok, err := s.Exists(ctx, "ca/missing.key")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.Open(ctx, "ca/missing.key")
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, fs.ErrNotExist))
	})

	t.Run("save and open", func(t *testing.T) {
		name, err := s.Save(ctx, "ca/4E1E.key", []byte("first"))
		require.NoError(t, err)
		assert.Equal(t, "ca/4E1E.key", name)

		ok, err := s.Exists(ctx, name)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, []byte("first"), readAll(t, s, name))
	})

	t.Run("overwrite", func(t *testing.T) {
		_, err := s.Save(ctx, "ca/4E1E.key", []byte("second"))
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), readAll(t, s, "ca/4E1E.key"))
	})

	t.Run("name is cleaned", func(t *testing.T) {
		name, err := s.Save(ctx, "ocsp/./AB.pem", []byte("pem"))
		require.NoError(t, err)
		assert.Equal(t, "ocsp/AB.pem", name)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "ca/4E1E.key"))
		ok, err := s.Exists(ctx, "ca/4E1E.key")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "/etc/passwd", "../escape.key", "ca/../../escape.key", "."} {
			_, err := s.Save(ctx, name, []byte("x"))
			assert.True(t, errors.IsCode(err, constants.ErrCodeInvalidKeyParameters), name)
		}
	})

	t.Run("location names the blob", func(t *testing.T) {
		assert.Contains(t, s.Location("ca/4E1E.key"), "4E1E.key")
	})
}

func readAll(t *testing.T, s service.Storage, name string) []byte {
	t.Helper()
	rc, err := s.Open(context.Background(), name)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage("mem")
	assert.Equal(t, "mem", s.Alias())
	runStorageContract(t, s)
}

func TestMemoryStorage_CopiesData(t *testing.T) {
	s := NewMemoryStorage("mem")
	data := []byte("original")
	_, err := s.Save(context.Background(), "a.key", data)
	require.NoError(t, err)
	data[0] = 'X'
	assert.Equal(t, []byte("original"), readAll(t, s, "a.key"))
}

func TestMemoryStorage_CancelledContext(t *testing.T) {
	s := NewMemoryStorage("mem")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Save(ctx, "a.key", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
