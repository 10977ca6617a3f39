// Package kv defines the durable string key-value storage the device keeps
// its offline state in, with in-memory and Redis implementations.
// The SQLite implementation lives in internal/db.
package kv

import (
	"context"
)

// Store is durable string key-value storage. A value written by Set must
// survive a process restart for every implementation except Memory.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Well-known keys.
const (
	KeyQueue          = "offline_queue"
	KeyQuarantine     = "offline_queue_quarantine"
	KeyRejections     = "offline_queue_rejections"
	KeyManualOverride = "manual_offline_override"
	KeySessionUser    = "session_user_id"
)
