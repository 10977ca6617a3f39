// Package scheduler decides when the offline queue is drained.
//
// A pass is requested when the device comes back online and manually. An
// optional periodic pass can be enabled for registers that stay online for
// long stretches. Requests go through a single
// coalescing trigger served by one worker, so a burst of connectivity
// flicker produces at most one extra pass, and that pass is skipped when the
// queue is already empty.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
	syncpkg "github.com/fitri99main/itongPOS-sub000/internal/sync"
	"github.com/fitri99main/itongPOS-sub000/internal/sync/queue"
)

// OnlineSource reports connectivity and its offline to online edge.
type OnlineSource interface {
	IsOnline() bool
	OnOnline(fn func()) (unsubscribe func())
}

// Scheduler manages background sync operations.
type Scheduler struct {
	engine       syncpkg.Syncer
	queue        *queue.SyncQueue
	online       OnlineSource
	syncInterval time.Duration
	trigger      chan struct{}
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.RWMutex
	isRunning    bool
	unsubscribe  func()
	lastSyncTime time.Time
	lastResult   *syncpkg.SyncResult
	passes       int
	emptySkips   int
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	SyncInterval time.Duration // How often to drain a non-empty queue when online; 0 disables (default: 0)
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		SyncInterval: 0,
	}
}

// NewScheduler creates a new Scheduler.
func NewScheduler(engine syncpkg.Syncer, q *queue.SyncQueue, online OnlineSource, config *SchedulerConfig) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}

	return &Scheduler{
		engine:       engine,
		queue:        q,
		online:       online,
		syncInterval: config.SyncInterval,
		trigger:      make(chan struct{}, 1),
	}
}

// Start starts the background sync scheduler. If the device is already
// online, a pass is requested right away to drain what was queued before
// the restart.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.unsubscribe = s.online.OnOnline(func() {
		logging.Info("Device back online, requesting sync")
		s.TriggerSync()
	})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.worker(ctx, stopCh)

	if s.syncInterval > 0 {
		s.wg.Add(1)
		go s.periodicSyncLoop(ctx, stopCh)
	}

	logging.Info("Background sync scheduler started", map[string]interface{}{
		"interval_seconds": s.syncInterval.Seconds(),
	})

	if s.online.IsOnline() {
		s.TriggerSync()
	}
}

// Stop stops the background sync scheduler gracefully. A pass in progress
// finishes first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	logging.Info("Background sync scheduler stopped")
}

// TriggerSync requests a background pass without waiting for it.
// Returns false when a request is already pending; the two are served by
// the same pass.
func (s *Scheduler) TriggerSync() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		logging.Debug("Sync already requested, coalescing")
		return false
	}
}

// SyncNow runs a pass and waits for it.
func (s *Scheduler) SyncNow(ctx context.Context) (*syncpkg.SyncResult, error) {
	if !s.online.IsOnline() {
		return nil, errors.New(errors.ErrRemoteUnavailable, "device is offline")
	}

	result, err := s.engine.Sync(ctx)
	if result != nil && !result.Skipped {
		s.recordPass(result)
	}
	if err != nil {
		logging.ErrorWithCode("Manual sync failed", string(errors.ErrSyncFailed), err)
		return result, err
	}

	logging.Info("Manual sync completed", map[string]interface{}{
		"applied":   result.Applied,
		"failed":    result.Failed,
		"remaining": result.Remaining,
		"skipped":   result.Skipped,
	})
	return result, nil
}

func (s *Scheduler) worker(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-s.trigger:
			s.runSync(ctx)
		}
	}
}

// periodicSyncLoop requests a pass at every interval while online with
// pending actions.
func (s *Scheduler) periodicSyncLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if s.online.IsOnline() && s.queue.Size() > 0 {
				s.TriggerSync()
			}
		}
	}
}

// runSync executes one requested pass.
func (s *Scheduler) runSync(ctx context.Context) {
	if !s.online.IsOnline() {
		logging.Debug("Skipping sync - device is offline")
		return
	}
	if s.queue.Size() == 0 {
		logging.Debug("Skipping sync - queue is empty")
		s.mu.Lock()
		s.emptySkips++
		s.mu.Unlock()
		return
	}

	result, err := s.engine.Sync(ctx)
	if result != nil && !result.Skipped {
		s.recordPass(result)
	}
	if err != nil {
		logging.ErrorWithCode("Background sync failed", string(errors.ErrSyncFailed), err)
		return
	}

	logging.Info("Background sync completed", map[string]interface{}{
		"applied":   result.Applied,
		"failed":    result.Failed,
		"remaining": result.Remaining,
		"skipped":   result.Skipped,
	})
}

func (s *Scheduler) recordPass(result *syncpkg.SyncResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes++
	s.lastSyncTime = result.EndTime
	s.lastResult = result
}

// SchedulerStatus is a snapshot of the scheduler.
type SchedulerStatus struct {
	IsRunning      bool                `json:"is_running"`
	IsOnline       bool                `json:"is_online"`
	LastSyncTime   *time.Time          `json:"last_sync_time,omitempty"`
	LastResult     *syncpkg.SyncResult `json:"last_result,omitempty"`
	SyncInProgress bool                `json:"sync_in_progress"`
	Passes         int                 `json:"passes"`
	SkippedEmpty   int                 `json:"skipped_empty"`
	PendingItems   int                 `json:"pending_items"`
	Quarantined    int                 `json:"quarantined"`
}

// GetStatus returns the current status of the scheduler.
func (s *Scheduler) GetStatus() SchedulerStatus {
	stats := s.queue.Stats()

	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		IsRunning:      s.isRunning,
		IsOnline:       s.online.IsOnline(),
		LastResult:     s.lastResult,
		SyncInProgress: s.engine.Status() == syncpkg.SyncStatusSyncing,
		Passes:         s.passes,
		SkippedEmpty:   s.emptySkips,
		PendingItems:   stats.Pending,
		Quarantined:    stats.Quarantined,
	}
	if !s.lastSyncTime.IsZero() {
		t := s.lastSyncTime
		status.LastSyncTime = &t
	}
	return status
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
