package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	st, err := NewFile(path)
	require.NoError(t, err)

	_, found, err := st.Get(ctx, "anything")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	st, err := NewFile(path)
	require.NoError(t, err)

	require.NoError(t, st.Set(ctx, "test-key", "test-value"))

	value, found, err := st.Get(ctx, "test-key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "test-value", value)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	st, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "persisted", "across restarts"))
	require.NoError(t, st.Close())

	reopened, err := NewFile(path)
	require.NoError(t, err)

	value, found, err := reopened.Get(ctx, "persisted")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "across restarts", value)
}

func TestFileStore_RemoveSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	st, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "keep", "1"))
	require.NoError(t, st.Set(ctx, "drop", "2"))
	require.NoError(t, st.Remove(ctx, "drop"))

	reopened, err := NewFile(path)
	require.NoError(t, err)

	_, found, err := reopened.Get(ctx, "drop")
	assert.NoError(t, err)
	assert.False(t, found)

	value, found, err := reopened.Get(ctx, "keep")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", value)
}

func TestFileStore_Clear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	st, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "a", "1"))
	require.NoError(t, st.Clear(ctx))

	reopened, err := NewFile(path)
	require.NoError(t, err)

	_, found, err := reopened.Get(ctx, "a")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestFileStore_CorruptFileFailsToOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFile(path)
	assert.ErrorContains(t, err, "parsing store file")
}

func TestFileStore_FilePermissionsRestricted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	st, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "secret", "value"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
