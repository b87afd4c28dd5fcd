package redisstore

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set TALKTOME_TEST_REDIS_URL (e.g. redis://localhost:6379/15) to run these.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TALKTOME_TEST_REDIS_URL")
	if url == "" {
		t.Skip("TALKTOME_TEST_REDIS_URL not set")
	}
	store, err := Connect(url)
	require.NoError(t, err)
	store.WithPrefix("talktome-test:" + uuid.NewString() + ":")
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect("not-a-redis-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis url")
}

func TestStore_GetSetRemove(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Get("comments:p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("comments:p1", []byte(`{"comments":[]}`)))
	value, ok, err := store.Get("comments:p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"comments":[]}`, string(value))

	require.NoError(t, store.Remove("comments:p1"))
	_, ok, err = store.Get("comments:p1")
	require.NoError(t, err)
	assert.False(t, ok)
}
