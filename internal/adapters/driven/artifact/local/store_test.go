package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "snap.json", []byte(`{"a":1}`)))
	data, err := store.Get(ctx, "snap.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	require.NoError(t, store.Put(ctx, "snap.json", []byte(`{"a":2}`)))
	data, err = store.Get(ctx, "snap.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	info, err := os.Stat(filepath.Join(dir, "snap.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_GetMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "absent.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "snap.json", []byte("x")))
	require.NoError(t, store.Delete(ctx, "snap.json"))
	require.NoError(t, store.Delete(ctx, "snap.json"))

	_, err = store.Get(ctx, "snap.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_RejectsPathNames(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../escape.json", "nested/snap.json"} {
		assert.ErrorIs(t, store.Put(ctx, name, []byte("x")), domain.ErrInvalidInput, name)
	}
}

func TestStore_Location(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "nested", "snapshots"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "nested", "snapshots", "snap.json"), store.Location("snap.json"))
	assert.DirExists(t, store.Dir())
}

func TestStore_CancelledContext(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Put(ctx, "snap.json", []byte("x")), context.Canceled)
}
