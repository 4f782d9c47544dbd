package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGet_NotFound(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	value, found, err := st.Get(ctx, "nonexistent")

	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, value)
}

func TestMemorySetAndGet_Success(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	err := st.Set(ctx, "test-key", "test-value")
	require.NoError(t, err)

	value, found, err := st.Get(ctx, "test-key")

	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "test-value", value)
}

func TestMemorySet_Overwrites(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	require.NoError(t, st.Set(ctx, "test-key", "first"))
	require.NoError(t, st.Set(ctx, "test-key", "second"))

	value, found, err := st.Get(ctx, "test-key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", value)
}

func TestMemoryRemove(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	require.NoError(t, st.Set(ctx, "test-key", "test-value"))
	require.NoError(t, st.Remove(ctx, "test-key"))

	_, found, err := st.Get(ctx, "test-key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryRemove_AbsentKeyIsNoError(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	assert.NoError(t, st.Remove(ctx, "never-set"))
}

func TestMemoryClear(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	require.NoError(t, st.Set(ctx, "a", "1"))
	require.NoError(t, st.Set(ctx, "b", "2"))
	require.NoError(t, st.Clear(ctx))

	_, found, err := st.Get(ctx, "a")
	assert.NoError(t, err)
	assert.False(t, found)

	_, found, err = st.Get(ctx, "b")
	assert.NoError(t, err)
	assert.False(t, found)
}
