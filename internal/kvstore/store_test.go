package kvstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func runStoreSuite(t *testing.T, store Store) {
	t.Helper()

	var out sample
	ok, err := store.Get("missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("key", sample{Name: "lamp", Count: 2}))

	ok, err = store.Get("key", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sample{Name: "lamp", Count: 2}, out)

	// overwrite
	require.NoError(t, store.Set("key", sample{Name: "plug", Count: 5}))
	ok, err = store.Get("key", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "plug", out.Name)

	require.NoError(t, store.Delete("key"))
	ok, err = store.Get("key", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting a missing key is not an error
	require.NoError(t, store.Delete("key"))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	runStoreSuite(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer store.Close()
	runStoreSuite(t, store)
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set("key", sample{Name: "lamp"}))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	defer second.Close()

	var out sample
	ok, err := second.Get("key", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lamp", out.Name)
}
