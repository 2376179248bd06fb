package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_SaveAndLoad(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Save("s1", "report", []byte("v1")))
	require.NoError(t, store.Save("s1", "report", []byte("v2")))

	data, err := store.Load("s1", "report")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
	assert.Equal(t, 2, store.Version("s1", "report"))
}

func TestInMemoryStore_Load_NotFound(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Load("s1", "missing")
	assert.Error(t, err)
}

func TestInMemoryStore_SessionIsolation(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Save("s1", "report", []byte("data")))

	_, err := store.Load("s2", "report")
	assert.Error(t, err)
}

func TestInMemoryStore_ListAndDelete(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Save("s1", "b", []byte("1")))
	require.NoError(t, store.Save("s1", "a", []byte("2")))

	ids, err := store.List("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, store.Delete("s1", "a"))
	ids, err = store.List("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	assert.Error(t, store.Delete("s1", "a"))
}

func TestInMemoryStore_LoadReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Save("s1", "report", []byte("data")))
	data, err := store.Load("s1", "report")
	require.NoError(t, err)

	data[0] = 'X'
	again, err := store.Load("s1", "report")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), again)
}
