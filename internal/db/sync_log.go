package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SyncLogEntry records the outcome of one sync pass.
type SyncLogEntry struct {
	ID          int64
	StartedAt   time.Time
	FinishedAt  time.Time
	Attempted   int
	Applied     int
	Failed      int
	Quarantined int
	Remaining   int
}

// SyncLog is the local history of sync passes shown on the status screen.
type SyncLog struct {
	db *sql.DB
}

// NewSyncLog creates a SyncLog on an opened database.
func NewSyncLog(db *DB) *SyncLog {
	return &SyncLog{db: db.DB}
}

// Record appends a pass to the log.
func (l *SyncLog) Record(ctx context.Context, entry SyncLogEntry) error {
	query := `
		INSERT INTO sync_log (started_at, finished_at, attempted, applied, failed, quarantined, remaining)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := l.db.ExecContext(ctx, query,
		entry.StartedAt.UnixMilli(), entry.FinishedAt.UnixMilli(),
		entry.Attempted, entry.Applied, entry.Failed, entry.Quarantined, entry.Remaining)
	if err != nil {
		return fmt.Errorf("failed to record sync pass: %w", err)
	}
	return nil
}

// Recent returns the latest passes, newest first.
func (l *SyncLog) Recent(ctx context.Context, limit int) ([]SyncLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, attempted, applied, failed, quarantined, remaining
		FROM sync_log ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer rows.Close()

	var entries []SyncLogEntry
	for rows.Next() {
		var e SyncLogEntry
		var started, finished int64
		if err := rows.Scan(&e.ID, &started, &finished, &e.Attempted, &e.Applied, &e.Failed, &e.Quarantined, &e.Remaining); err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		e.StartedAt = time.UnixMilli(started)
		e.FinishedAt = time.UnixMilli(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes passes older than the cutoff and returns how many were removed.
func (l *SyncLog) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, "DELETE FROM sync_log WHERE started_at < ?", olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sync log: %w", err)
	}
	return res.RowsAffected()
}
