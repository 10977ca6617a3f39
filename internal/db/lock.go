package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the lock file created next to the database.
const LockFileName = "itongpos.lock"

// ErrLocked is returned by LockDir when another process owns the data
// directory.
var ErrLocked = errors.New("data directory is in use by another process")

// DirLock is an exclusive, process-wide claim on a data directory. The queue
// is rewritten whole on every change, so only one process may hold it.
type DirLock struct {
	fl *flock.Flock
}

// LockDir takes the lock for dataDir without waiting. It returns ErrLocked
// when another process already holds it.
func LockDir(dataDir string) (*DirLock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fl := flock.New(filepath.Join(dataDir, LockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock data directory: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &DirLock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.fl.Path()
}

// Unlock releases the lock. It is safe to call more than once.
func (l *DirLock) Unlock() error {
	return l.fl.Unlock()
}
