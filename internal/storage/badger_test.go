package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/hopping"
)

func TestBadgerStore_RoundTrip(t *testing.T) {
	store, err := OpenBadger("")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, hopping.ErrNotFound)

	require.NoError(t, store.Set("k", []byte("v")))
	got, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, store.Delete("k"))
	_, err = store.Get("k")
	assert.ErrorIs(t, err, hopping.ErrNotFound)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(hopping.StorageKey, []byte(`{"isBlocked":false}`)))
	require.NoError(t, store.Close())

	store, err = OpenBadger(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(hopping.StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"isBlocked":false}`, string(got))
}
