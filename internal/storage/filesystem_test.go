package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	path := "1.2.3/4.5.6/7.8.9.dcm"
	payload := []byte("dicom bytes")
	require.NoError(t, store.Store(ctx, path, payload))

	exists, err := store.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := store.Retrieve(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	require.NoError(t, store.Delete(ctx, path))
	exists, err = store.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFilesystemStoreOverwrite(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, "blob", []byte("v1")))
	require.NoError(t, store.Store(ctx, "blob", []byte("v2")))

	data, err := store.Retrieve(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestFilesystemStoreTraversalStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	// Traversal segments are cleaned away, never resolved outside the root.
	require.NoError(t, store.Store(ctx, "../../escape", []byte("x")))

	_, err = os.Stat(filepath.Join(filepath.Dir(root), "escape"))
	assert.True(t, os.IsNotExist(err))

	data, err := store.Retrieve(ctx, "escape")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestFilesystemStoreDeleteMissingIsNoError(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "never-stored"))
}
