package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := b.Load(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Save(ctx, "k", []byte("v1")))
	require.NoError(t, b.Save(ctx, "k", []byte("v2")))
	v, ok, err := b.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", string(v))

	require.NoError(t, b.Delete(ctx, "k"))
	_, ok, err = b.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	exerciseBackend(t, m)

	require.NoError(t, m.Close())
	_, _, err := m.Load(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSQLite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "kv.db")

	db, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	exerciseBackend(t, db)

	require.NoError(t, db.Save(context.Background(), "durable", []byte("yes")))
	require.NoError(t, db.Close())

	reopened, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	v, ok, err := reopened.Load(context.Background(), "durable")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "yes", string(v))
}

func TestArea_PrefixesKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	a := NewArea(m, "local:")

	require.NoError(t, a.Set(ctx, "theme", "dark"))
	got, ok, err := a.Get(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", got)

	_, ok, err = m.Load(ctx, "local:theme")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, a.Remove(ctx, "theme"))
	_, ok, _ = a.Get(ctx, "theme")
	assert.False(t, ok)
}
