// Package sync reconciles the offline queue with the remote system.
package sync

import (
	"context"
	"time"
)

// Syncer defines the interface for sync operations.
// This interface allows for mocking in tests and alternative implementations.
type Syncer interface {
	// Sync drains the queue once. A call made while a pass is running
	// returns a skipped result immediately.
	Sync(ctx context.Context) (*SyncResult, error)

	// SetEventHandler sets the event handler for sync notifications.
	SetEventHandler(handler SyncEventHandler)

	// Status returns the current sync status.
	Status() SyncStatus

	// LastSync returns the end time of the last completed pass.
	LastSync() *time.Time

	// PendingChanges returns the number of queued actions.
	PendingChanges() int

	// LastError returns the last error that occurred during sync.
	LastError() error
}

// SyncEventType names a sync notification.
type SyncEventType string

const (
	SyncEventStarted           SyncEventType = "sync.started"
	SyncEventActionApplied     SyncEventType = "sync.action_applied"
	SyncEventActionFailed      SyncEventType = "sync.action_failed"
	SyncEventActionQuarantined SyncEventType = "sync.action_quarantined"
	SyncEventCompleted         SyncEventType = "sync.completed"
)

// SyncEvent is a notification emitted during a pass.
type SyncEvent struct {
	Type          SyncEventType `json:"type"`
	ActionID      string        `json:"action_id,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Message       string        `json:"message,omitempty"`
	Error         string        `json:"error,omitempty"`
	Result        *SyncResult   `json:"result,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// SyncEventHandler receives sync notifications.
type SyncEventHandler interface {
	OnSyncEvent(event SyncEvent)
}

// SyncEventHandlerFunc adapts a function to SyncEventHandler.
type SyncEventHandlerFunc func(event SyncEvent)

// OnSyncEvent implements SyncEventHandler.
func (f SyncEventHandlerFunc) OnSyncEvent(event SyncEvent) {
	f(event)
}
