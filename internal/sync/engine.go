package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/fitri99main/itongPOS-sub000/internal/db"
	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
	"github.com/fitri99main/itongPOS-sub000/internal/sync/queue"
)

// SyncStatus represents the current sync status.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusFailed  SyncStatus = "failed"
)

const maxErrorHistory = 100

// SyncResult represents the result of a sync pass.
type SyncResult struct {
	Attempted      int           `json:"attempted"`
	Applied        int           `json:"applied"`
	Failed         int           `json:"failed"`
	Quarantined    int           `json:"quarantined"`
	Remaining      int           `json:"remaining"`
	Skipped        bool          `json:"skipped"`
	TransactionIDs []string      `json:"transaction_ids,omitempty"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	Error          string        `json:"error,omitempty"`
}

// Message renders the result for the cashier.
func (r *SyncResult) Message() string {
	if r.Skipped {
		return "sync already in progress"
	}
	if r.Applied == 1 {
		return "1 transaction synced"
	}
	return fmt.Sprintf("%d transactions synced", r.Applied)
}

// SyncErrorEntry is one failed action attempt.
type SyncErrorEntry struct {
	ActionID  string              `json:"action_id"`
	Operation string              `json:"operation"`
	Code      apperrors.ErrorCode `json:"code"`
	Error     string              `json:"error"`
	Timestamp time.Time           `json:"timestamp"`
}

// PassRecorder keeps a history of passes.
type PassRecorder interface {
	Record(ctx context.Context, entry db.SyncLogEntry) error
}

// ProcessorConfig holds processor configuration.
type ProcessorConfig struct {
	MaxRejections int           // permanent rejections before an action is quarantined (default: 3)
	ActionTimeout time.Duration // deadline of one action's remote writes (default: 30 seconds)
}

// DefaultProcessorConfig returns default processor configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		MaxRejections: 3,
		ActionTimeout: 30 * time.Second,
	}
}

// Processor drains the offline queue against the remote system.
//
// A pass works on a snapshot of the queue taken when it starts. Each action
// is applied on its own; a failure is recorded and the pass moves on, so one
// bad sale never blocks the ones behind it. Applied actions are removed in
// one write at the end of the pass.
type Processor struct {
	queue         *queue.SyncQueue
	handlers      map[models.ActionType]Handler
	maxRejections int
	actionTimeout time.Duration

	mu           stdsync.Mutex
	status       SyncStatus
	lastSync     *time.Time
	lastErr      error
	errorHistory []SyncErrorEntry
	eventHandler SyncEventHandler
	recorder     PassRecorder
}

var _ Syncer = (*Processor)(nil)

// NewProcessor creates a Processor with one handler per action type.
func NewProcessor(q *queue.SyncQueue, config ProcessorConfig, handlers ...Handler) *Processor {
	defaults := DefaultProcessorConfig()
	if config.MaxRejections <= 0 {
		config.MaxRejections = defaults.MaxRejections
	}
	if config.ActionTimeout <= 0 {
		config.ActionTimeout = defaults.ActionTimeout
	}

	p := &Processor{
		queue:         q,
		handlers:      make(map[models.ActionType]Handler, len(handlers)),
		maxRejections: config.MaxRejections,
		actionTimeout: config.ActionTimeout,
		status:        SyncStatusIdle,
		errorHistory:  make([]SyncErrorEntry, 0),
	}
	for _, h := range handlers {
		p.handlers[h.Type()] = h
	}
	return p
}

// SetRecorder sets where finished passes are recorded.
func (p *Processor) SetRecorder(recorder PassRecorder) {
	p.mu.Lock()
	p.recorder = recorder
	p.mu.Unlock()
}

// SetEventHandler implements Syncer.
func (p *Processor) SetEventHandler(handler SyncEventHandler) {
	p.mu.Lock()
	p.eventHandler = handler
	p.mu.Unlock()
}

// Status implements Syncer.
func (p *Processor) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// LastSync implements Syncer.
func (p *Processor) LastSync() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastSync == nil {
		return nil
	}
	t := *p.lastSync
	return &t
}

// PendingChanges implements Syncer.
func (p *Processor) PendingChanges() int {
	return p.queue.Size()
}

// LastError implements Syncer.
func (p *Processor) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// GetErrorHistory returns a copy of recent action failures.
func (p *Processor) GetErrorHistory() []SyncErrorEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	history := make([]SyncErrorEntry, len(p.errorHistory))
	copy(history, p.errorHistory)
	return history
}

// ClearErrorHistory clears recorded action failures.
func (p *Processor) ClearErrorHistory() {
	p.mu.Lock()
	p.errorHistory = make([]SyncErrorEntry, 0)
	p.mu.Unlock()
}

func (p *Processor) recordError(actionID, operation string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errorHistory = append(p.errorHistory, SyncErrorEntry{
		ActionID:  actionID,
		Operation: operation,
		Code:      apperrors.CodeOf(err),
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
	if len(p.errorHistory) > maxErrorHistory {
		p.errorHistory = p.errorHistory[len(p.errorHistory)-maxErrorHistory:]
	}
}

func (p *Processor) emitEvent(event SyncEvent) {
	p.mu.Lock()
	handler := p.eventHandler
	p.mu.Unlock()

	if handler == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	handler.OnSyncEvent(event)
}

// Sync implements Syncer.
func (p *Processor) Sync(ctx context.Context) (*SyncResult, error) {
	p.mu.Lock()
	if p.status == SyncStatusSyncing {
		p.mu.Unlock()
		logging.Debug("Sync already in progress, skipping")
		return &SyncResult{Skipped: true, Remaining: p.queue.Size()}, nil
	}
	p.status = SyncStatusSyncing
	p.mu.Unlock()

	result := &SyncResult{StartTime: time.Now()}
	snapshot := p.queue.List()

	logging.Info("Sync pass started", map[string]interface{}{"pending": len(snapshot)})
	p.emitEvent(SyncEvent{Type: SyncEventStarted, Message: fmt.Sprintf("%d pending", len(snapshot))})

	var (
		applied   []string
		actionErr error
	)
	for _, action := range snapshot {
		if ctx.Err() != nil {
			break
		}
		result.Attempted++

		err := p.apply(ctx, action)
		if err == nil {
			applied = append(applied, action.ID)
			result.Applied++
			txID := transactionID(action)
			if txID != "" {
				result.TransactionIDs = append(result.TransactionIDs, txID)
			}
			p.emitEvent(SyncEvent{Type: SyncEventActionApplied, ActionID: action.ID, TransactionID: txID})
			continue
		}

		actionErr = err
		result.Failed++
		p.recordError(action.ID, string(action.Type()), err)
		logging.ErrorWithCode("Queued action failed", string(apperrors.CodeOf(err)), err, map[string]interface{}{
			"action_id": action.ID,
			"type":      string(action.Type()),
			"permanent": apperrors.IsPermanent(err),
		})
		p.emitEvent(SyncEvent{
			Type:          SyncEventActionFailed,
			ActionID:      action.ID,
			TransactionID: transactionID(action),
			Error:         err.Error(),
		})

		if p.quarantineIfExhausted(ctx, action, err) {
			result.Quarantined++
		}
	}

	// Removal must land even if the caller gave up on the pass.
	_, removeErr := p.queue.RemoveMany(context.WithoutCancel(ctx), applied)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Remaining = p.queue.Size()

	p.mu.Lock()
	recorder := p.recorder
	if removeErr != nil {
		p.status = SyncStatusFailed
		p.lastErr = removeErr
		result.Error = removeErr.Error()
	} else {
		p.status = SyncStatusIdle
		p.lastErr = actionErr
		end := result.EndTime
		p.lastSync = &end
	}
	p.mu.Unlock()

	if recorder != nil {
		entry := db.SyncLogEntry{
			StartedAt:   result.StartTime,
			FinishedAt:  result.EndTime,
			Attempted:   result.Attempted,
			Applied:     result.Applied,
			Failed:      result.Failed,
			Quarantined: result.Quarantined,
			Remaining:   result.Remaining,
		}
		if err := recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
			logging.Warn("Failed to record sync pass", map[string]interface{}{"error": err.Error()})
		}
	}

	logging.Info("Sync pass completed", map[string]interface{}{
		"attempted":   result.Attempted,
		"applied":     result.Applied,
		"failed":      result.Failed,
		"quarantined": result.Quarantined,
		"remaining":   result.Remaining,
		"duration_ms": result.Duration.Milliseconds(),
	})
	p.emitEvent(SyncEvent{Type: SyncEventCompleted, Message: result.Message(), Result: result})

	if removeErr != nil {
		return result, apperrors.Wrap(apperrors.ErrSyncFailed, "failed to remove applied actions", removeErr)
	}
	return result, nil
}

func (p *Processor) apply(ctx context.Context, action models.QueuedAction) error {
	handler, ok := p.handlers[action.Type()]
	if !ok {
		return apperrors.New(apperrors.ErrUnknownAction, fmt.Sprintf("no handler for action type %q", action.Type()))
	}

	actionCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()
	return handler.Apply(actionCtx, action.Action)
}

// quarantineIfExhausted counts a permanent rejection and moves the action
// out of the queue once it reached the limit.
func (p *Processor) quarantineIfExhausted(ctx context.Context, action models.QueuedAction, cause error) bool {
	if !apperrors.IsPermanent(cause) {
		return false
	}

	count, err := p.queue.RecordFailure(ctx, action.ID, cause)
	if err != nil {
		logging.Warn("Failed to record rejection", map[string]interface{}{"action_id": action.ID, "error": err.Error()})
		return false
	}
	if count < p.maxRejections {
		return false
	}

	if err := p.queue.Quarantine(ctx, action.ID, cause.Error()); err != nil {
		logging.Warn("Failed to quarantine action", map[string]interface{}{"action_id": action.ID, "error": err.Error()})
		return false
	}
	p.emitEvent(SyncEvent{
		Type:          SyncEventActionQuarantined,
		ActionID:      action.ID,
		TransactionID: transactionID(action),
		Error:         cause.Error(),
	})
	return true
}

func transactionID(action models.QueuedAction) string {
	if insert, ok := action.Action.(models.InsertTransaction); ok {
		return insert.Header.ID
	}
	return ""
}
