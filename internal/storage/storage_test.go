package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionchat/internal/common"
)

func TestLocalStore_SaveAndRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	path, err := s.Save(ctx, "a.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), path)

	data, err := s.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestLocalStore_RefusesOverwrite(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	path, err := s.Save(ctx, "same.png", []byte("first"))
	require.NoError(t, err)

	_, err = s.Save(ctx, "same.png", []byte("second"))
	assert.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestLocalStore_RejectsUnsafeNames(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", ".", "..", "../escape.jpg", "sub/dir.jpg"} {
		_, err := s.Save(context.Background(), name, []byte("x"))
		assert.ErrorIs(t, err, common.ErrBadInput, "name %q", name)
	}
}

func TestLocalStore_ReadMissing(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Read(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLocalStore_HonoursCancelledContext(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Save(ctx, "x.jpg", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStore_Delete(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	path, err := s.Save(ctx, "d.jpg", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, path))
	_, err = s.Read(ctx, path)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.NoError(t, s.Delete(ctx, path), "deleting twice is not an error")
}

func TestMinioStore_ObjectName(t *testing.T) {
	s := &MinioStore{bucket: "uploads"}

	obj, ok := s.objectName("uploads/abc.jpg")
	assert.True(t, ok)
	assert.Equal(t, "abc.jpg", obj)

	_, ok = s.objectName("other/abc.jpg")
	assert.False(t, ok)

	_, ok = s.objectName("uploads/")
	assert.False(t, ok)
}
