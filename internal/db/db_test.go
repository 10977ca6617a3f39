// Package db tests for database connection management.
package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpen verifies database opening with proper configuration.
func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Open(tmpDir)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Join(tmpDir, FileName))
	assert.NoError(t, err, "database file was not created")

	var walMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&walMode))
	assert.Equal(t, "wal", walMode)

	var fkEnabled int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled))
	assert.Equal(t, 1, fkEnabled)

	var tables int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('kv_store','sync_log')").Scan(&tables))
	assert.Equal(t, 2, tables)
}

// TestOpen_invalidDataDir verifies error when data directory cannot be created.
func TestOpen_invalidDataDir(t *testing.T) {
	_, err := Open("/dev/null/invalid_path/that/cannot/be/created")
	assert.Error(t, err)
}

// TestOpen_reopen verifies migrations are not re-applied on a second open.
func TestOpen_reopen(t *testing.T) {
	tmpDir := t.TempDir()

	first, err := Open(tmpDir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(tmpDir)
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	kv := NewKVStore(db)

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "offline_queue", "[]"))
	require.NoError(t, kv.Set(ctx, "offline_queue", `[{"id":"a"}]`))

	value, ok, err := kv.Get(ctx, "offline_queue")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"a"}]`, value)

	require.NoError(t, kv.Delete(ctx, "offline_queue"))
	require.NoError(t, kv.Delete(ctx, "offline_queue"))
	_, ok, err = kv.Get(ctx, "offline_queue")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVStore_survivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, NewKVStore(db).Set(ctx, "manual_offline_override", "true"))
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()

	value, ok, err := NewKVStore(db).Get(ctx, "manual_offline_override")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", value)
}

func TestSyncLog(t *testing.T) {
	ctx := context.Background()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	log := NewSyncLog(db)
	base := time.UnixMilli(1718000000000)
	for i := 0; i < 3; i++ {
		start := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, log.Record(ctx, SyncLogEntry{
			StartedAt: start, FinishedAt: start.Add(time.Second),
			Attempted: 3, Applied: i, Failed: 3 - i, Remaining: 3 - i,
		}))
	}

	recent, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 2, recent[0].Applied)
	assert.Equal(t, 1, recent[1].Applied)

	removed, err := log.Prune(ctx, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}
