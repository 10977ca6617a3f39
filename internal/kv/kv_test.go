package kv

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "kv_test_missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "kv_test_key", "one"))
	require.NoError(t, s.Set(ctx, "kv_test_key", "two"))

	value, ok, err := s.Get(ctx, "kv_test_key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", value)

	require.NoError(t, s.Set(ctx, "kv_test_empty", ""))
	value, ok, err = s.Get(ctx, "kv_test_empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, value)

	require.NoError(t, s.Delete(ctx, "kv_test_key"))
	require.NoError(t, s.Delete(ctx, "kv_test_empty"))
	require.NoError(t, s.Delete(ctx, "kv_test_key"))
	_, ok, err = s.Get(ctx, "kv_test_key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_FailWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "k", "v"))

	m.FailWrites(true)
	assert.ErrorIs(t, m.Set(ctx, "k", "w"), ErrInjected)
	assert.ErrorIs(t, m.Delete(ctx, "k"), ErrInjected)

	value, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
	assert.Equal(t, 1, m.Writes())

	m.FailWrites(false)
	require.NoError(t, m.Set(ctx, "k", "w"))
	assert.Equal(t, 2, m.Writes())
}

func TestRedis(t *testing.T) {
	url := os.Getenv("POS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("POS_TEST_REDIS_URL not set")
	}
	r, err := NewRedis(url, "kv-test")
	require.NoError(t, err)
	defer r.Close()

	exerciseStore(t, r)
}

func TestRedis_lease(t *testing.T) {
	url := os.Getenv("POS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("POS_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	r, err := NewRedis(url, "lease-test")
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Lease(ctx, "a", time.Minute))
	defer r.Release(ctx, "a")

	assert.ErrorIs(t, r.Lease(ctx, "b", time.Minute), ErrLeaseHeld)
	assert.ErrorIs(t, r.Renew(ctx, "b", time.Minute), ErrLeaseHeld)
	require.NoError(t, r.Renew(ctx, "a", time.Minute))

	require.NoError(t, r.Release(ctx, "b"), "foreign release is ignored")
	assert.ErrorIs(t, r.Lease(ctx, "b", time.Minute), ErrLeaseHeld)

	require.NoError(t, r.Release(ctx, "a"))
	require.NoError(t, r.Lease(ctx, "b", time.Minute))
	require.NoError(t, r.Release(ctx, "b"))
}

func TestNewRedis_badURL(t *testing.T) {
	_, err := NewRedis("not a url", "x")
	assert.Error(t, err)
}
