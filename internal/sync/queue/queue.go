// Package queue provides the durable queue of remote writes made while the
// device could not reach the remote system.
//
// The queue is an ordered list persisted as JSON in a kv.Store. Every
// mutation writes the whole list before it returns; if that write fails the
// in-memory list is rolled back and the error is returned, so memory and
// storage never diverge.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/kv"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
	"github.com/fitri99main/itongPOS-sub000/internal/uuid"
)

// QuarantinedAction is an action the remote system kept rejecting.
// It stays on the device until an operator requeues or discards it.
type QuarantinedAction struct {
	Action        models.QueuedAction `json:"action"`
	Reason        string              `json:"reason"`
	Rejections    int                 `json:"rejections"`
	QuarantinedAt int64               `json:"quarantined_at"`
}

// EventKind describes a queue change.
type EventKind string

const (
	EventLoaded      EventKind = "loaded"
	EventEnqueued    EventKind = "enqueued"
	EventRemoved     EventKind = "removed"
	EventQuarantined EventKind = "quarantined"
	EventRequeued    EventKind = "requeued"
	EventDiscarded   EventKind = "discarded"
)

// Event is sent to subscribers after a change was persisted.
type Event struct {
	Kind        EventKind `json:"kind"`
	ActionIDs   []string  `json:"action_ids,omitempty"`
	Pending     int       `json:"pending"`
	Quarantined int       `json:"quarantined"`
}

// Stats summarises the queue.
type Stats struct {
	Pending     int        `json:"pending"`
	Quarantined int        `json:"quarantined"`
	Oldest      *time.Time `json:"oldest,omitempty"`
}

// SyncQueue is the durable action queue.
type SyncQueue struct {
	mu         sync.Mutex
	store      kv.Store
	items      []models.QueuedAction
	quarantine []QuarantinedAction
	rejections map[string]int
	now        func() time.Time

	listenersMu sync.Mutex
	nextID      int
	listeners   map[int]func(Event)
}

// NewSyncQueue creates an empty queue over store. Call Load before use.
func NewSyncQueue(store kv.Store) *SyncQueue {
	return &SyncQueue{
		store:      store,
		rejections: make(map[string]int),
		now:        time.Now,
		listeners:  make(map[int]func(Event)),
	}
}

// Load reads the persisted queue. A device without prior state starts empty.
// Actions with an unknown type are kept as they are.
func (q *SyncQueue) Load(ctx context.Context) error {
	var (
		items      []models.QueuedAction
		quarantine []QuarantinedAction
		rejections map[string]int
	)
	if err := q.read(ctx, kv.KeyQueue, &items); err != nil {
		return err
	}
	if err := q.read(ctx, kv.KeyQuarantine, &quarantine); err != nil {
		return err
	}
	if err := q.read(ctx, kv.KeyRejections, &rejections); err != nil {
		return err
	}

	// An interrupted move between the two lists can leave an action in
	// both; the pending copy wins.
	pending := make(map[string]bool, len(items))
	for _, item := range items {
		pending[item.ID] = true
	}
	kept := quarantine[:0]
	for _, qa := range quarantine {
		if !pending[qa.Action.ID] {
			kept = append(kept, qa)
		}
	}
	if rejections == nil {
		rejections = make(map[string]int)
	}

	q.mu.Lock()
	q.items = items
	q.quarantine = kept
	q.rejections = rejections
	event := q.eventLocked(EventLoaded, nil)
	q.mu.Unlock()

	logging.Info("Offline queue loaded", map[string]interface{}{
		"pending":     event.Pending,
		"quarantined": event.Quarantined,
	})
	q.notify(event)
	return nil
}

func (q *SyncQueue) read(ctx context.Context, key string, v interface{}) error {
	raw, ok, err := q.store.Get(ctx, key)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, fmt.Sprintf("failed to read %s", key), err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return apperrors.Wrap(apperrors.ErrQueueCorrupt, fmt.Sprintf("failed to decode %s", key), err)
	}
	return nil
}

func (q *SyncQueue) write(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrQueuePersist, fmt.Sprintf("failed to encode %s", key), err)
	}
	if err := q.store.Set(ctx, key, string(data)); err != nil {
		return apperrors.Wrap(apperrors.ErrQueuePersist, fmt.Sprintf("failed to persist %s", key), err)
	}
	return nil
}

func (q *SyncQueue) persistItemsLocked(ctx context.Context) error {
	items := q.items
	if items == nil {
		items = []models.QueuedAction{}
	}
	return q.write(ctx, kv.KeyQueue, items)
}

func (q *SyncQueue) persistQuarantineLocked(ctx context.Context) error {
	quarantine := q.quarantine
	if quarantine == nil {
		quarantine = []QuarantinedAction{}
	}
	return q.write(ctx, kv.KeyQuarantine, quarantine)
}

// Enqueue appends action with a fresh local id and timestamp and returns
// the queued entry once it is persisted.
func (q *SyncQueue) Enqueue(ctx context.Context, action models.Action) (models.QueuedAction, error) {
	if action == nil {
		return models.QueuedAction{}, apperrors.New(apperrors.ErrInvalid, "nil action")
	}

	entry := models.QueuedAction{
		ID:        uuid.NewActionID(),
		Action:    action,
		Timestamp: q.now().UnixMilli(),
	}.Clone()

	q.mu.Lock()
	prev := q.items
	q.items = append(append(make([]models.QueuedAction, 0, len(prev)+1), prev...), entry)
	if err := q.persistItemsLocked(ctx); err != nil {
		q.items = prev
		q.mu.Unlock()
		logging.ErrorWithCode("Failed to persist enqueued action", string(apperrors.ErrQueuePersist), err,
			map[string]interface{}{"action_id": entry.ID, "type": string(entry.Type())})
		return models.QueuedAction{}, err
	}
	event := q.eventLocked(EventEnqueued, []string{entry.ID})
	q.mu.Unlock()

	logging.Info("Action enqueued", map[string]interface{}{
		"action_id": entry.ID,
		"type":      string(entry.Type()),
		"pending":   event.Pending,
	})
	q.notify(event)
	return entry.Clone(), nil
}

// List returns a copy of the pending actions in order.
func (q *SyncQueue) List() []models.QueuedAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueuedAction, len(q.items))
	for i, item := range q.items {
		out[i] = item.Clone()
	}
	return out
}

// Get returns the pending action with the given id.
func (q *SyncQueue) Get(id string) (models.QueuedAction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.ID == id {
			return item.Clone(), true
		}
	}
	return models.QueuedAction{}, false
}

// Size returns the number of pending actions.
func (q *SyncQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Remove removes one pending action.
func (q *SyncQueue) Remove(ctx context.Context, id string) error {
	removed, err := q.RemoveMany(ctx, []string{id})
	if err != nil {
		return err
	}
	if removed == 0 {
		return apperrors.New(apperrors.ErrActionMissing, fmt.Sprintf("action %s is not queued", id))
	}
	return nil
}

// RemoveMany removes every listed pending action in a single write and
// returns how many were found. Actions not listed keep their order,
// including ones enqueued after the caller took its snapshot.
func (q *SyncQueue) RemoveMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	q.mu.Lock()
	prev := q.items
	kept := make([]models.QueuedAction, 0, len(prev))
	var removedIDs []string
	for _, item := range prev {
		if drop[item.ID] {
			removedIDs = append(removedIDs, item.ID)
			continue
		}
		kept = append(kept, item)
	}
	if len(removedIDs) == 0 {
		q.mu.Unlock()
		return 0, nil
	}

	q.items = kept
	if err := q.persistItemsLocked(ctx); err != nil {
		q.items = prev
		q.mu.Unlock()
		return 0, err
	}
	q.clearRejectionsLocked(ctx, removedIDs)
	event := q.eventLocked(EventRemoved, removedIDs)
	q.mu.Unlock()

	q.notify(event)
	return len(removedIDs), nil
}

// RecordFailure counts a rejection of a pending action and returns the
// total. Only permanent errors are counted; transient ones leave the count
// unchanged.
func (q *SyncQueue) RecordFailure(ctx context.Context, id string, cause error) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := q.rejections[id]
	if !apperrors.IsPermanent(cause) {
		return count, nil
	}

	q.rejections[id] = count + 1
	if err := q.write(ctx, kv.KeyRejections, q.rejections); err != nil {
		q.rejections[id] = count
		if count == 0 {
			delete(q.rejections, id)
		}
		return count, err
	}
	return count + 1, nil
}

// Rejections returns the recorded rejection count of a pending action.
func (q *SyncQueue) Rejections(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rejections[id]
}

func (q *SyncQueue) clearRejectionsLocked(ctx context.Context, ids []string) {
	changed := false
	for _, id := range ids {
		if _, ok := q.rejections[id]; ok {
			delete(q.rejections, id)
			changed = true
		}
	}
	if !changed {
		return
	}
	if err := q.write(ctx, kv.KeyRejections, q.rejections); err != nil {
		logging.Warn("Failed to clear rejection counters", map[string]interface{}{"error": err.Error()})
	}
}

// Quarantine moves a pending action to the quarantine list.
func (q *SyncQueue) Quarantine(ctx context.Context, id, reason string) error {
	q.mu.Lock()

	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return apperrors.New(apperrors.ErrActionMissing, fmt.Sprintf("action %s is not queued", id))
	}

	prevItems, prevQuarantine := q.items, q.quarantine
	entry := QuarantinedAction{
		Action:        prevItems[idx],
		Reason:        reason,
		Rejections:    q.rejections[id],
		QuarantinedAt: q.now().UnixMilli(),
	}

	q.quarantine = append(append(make([]QuarantinedAction, 0, len(prevQuarantine)+1), prevQuarantine...), entry)
	if err := q.persistQuarantineLocked(ctx); err != nil {
		q.quarantine = prevQuarantine
		q.mu.Unlock()
		return err
	}

	q.items = append(append(make([]models.QueuedAction, 0, len(prevItems)-1), prevItems[:idx]...), prevItems[idx+1:]...)
	if err := q.persistItemsLocked(ctx); err != nil {
		q.items, q.quarantine = prevItems, prevQuarantine
		if restoreErr := q.persistQuarantineLocked(ctx); restoreErr != nil {
			logging.Warn("Failed to restore quarantine list", map[string]interface{}{"error": restoreErr.Error()})
		}
		q.mu.Unlock()
		return err
	}
	q.clearRejectionsLocked(ctx, []string{id})
	event := q.eventLocked(EventQuarantined, []string{id})
	q.mu.Unlock()

	logging.Warn("Action quarantined", map[string]interface{}{
		"action_id":  id,
		"reason":     reason,
		"rejections": entry.Rejections,
	})
	q.notify(event)
	return nil
}

// Quarantined returns a copy of the quarantine list.
func (q *SyncQueue) Quarantined() []QuarantinedAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QuarantinedAction, len(q.quarantine))
	for i, qa := range q.quarantine {
		out[i] = qa
		out[i].Action = qa.Action.Clone()
	}
	return out
}

// Requeue moves a quarantined action back to the tail of the queue with a
// fresh rejection count. It keeps its id and payload.
func (q *SyncQueue) Requeue(ctx context.Context, id string) error {
	q.mu.Lock()

	idx := q.quarantineIndexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return apperrors.New(apperrors.ErrActionMissing, fmt.Sprintf("action %s is not quarantined", id))
	}

	prevItems, prevQuarantine := q.items, q.quarantine
	q.items = append(append(make([]models.QueuedAction, 0, len(prevItems)+1), prevItems...), prevQuarantine[idx].Action)
	if err := q.persistItemsLocked(ctx); err != nil {
		q.items = prevItems
		q.mu.Unlock()
		return err
	}

	q.quarantine = append(append(make([]QuarantinedAction, 0, len(prevQuarantine)-1), prevQuarantine[:idx]...), prevQuarantine[idx+1:]...)
	if err := q.persistQuarantineLocked(ctx); err != nil {
		q.quarantine = prevQuarantine
		q.items = prevItems
		if restoreErr := q.persistItemsLocked(ctx); restoreErr != nil {
			logging.Warn("Failed to restore queue", map[string]interface{}{"error": restoreErr.Error()})
		}
		q.mu.Unlock()
		return err
	}
	event := q.eventLocked(EventRequeued, []string{id})
	q.mu.Unlock()

	logging.Info("Quarantined action requeued", map[string]interface{}{"action_id": id})
	q.notify(event)
	return nil
}

// Discard permanently deletes a quarantined action.
func (q *SyncQueue) Discard(ctx context.Context, id string) error {
	q.mu.Lock()

	idx := q.quarantineIndexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return apperrors.New(apperrors.ErrActionMissing, fmt.Sprintf("action %s is not quarantined", id))
	}

	prev := q.quarantine
	discarded := prev[idx]
	q.quarantine = append(append(make([]QuarantinedAction, 0, len(prev)-1), prev[:idx]...), prev[idx+1:]...)
	if err := q.persistQuarantineLocked(ctx); err != nil {
		q.quarantine = prev
		q.mu.Unlock()
		return err
	}
	event := q.eventLocked(EventDiscarded, []string{id})
	q.mu.Unlock()

	fields := map[string]interface{}{"action_id": id, "reason": discarded.Reason}
	if insert, ok := discarded.Action.Action.(models.InsertTransaction); ok {
		fields["transaction_id"] = insert.Header.ID
	}
	logging.Warn("Quarantined action discarded", fields)
	q.notify(event)
	return nil
}

// Stats returns pending and quarantined counts.
func (q *SyncQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := Stats{Pending: len(q.items), Quarantined: len(q.quarantine)}
	if len(q.items) > 0 {
		oldest := q.items[0].Time()
		stats.Oldest = &oldest
	}
	return stats
}

// Subscribe registers fn for every persisted change.
func (q *SyncQueue) Subscribe(fn func(Event)) (unsubscribe func()) {
	q.listenersMu.Lock()
	defer q.listenersMu.Unlock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = fn
	return func() {
		q.listenersMu.Lock()
		delete(q.listeners, id)
		q.listenersMu.Unlock()
	}
}

func (q *SyncQueue) notify(event Event) {
	q.listenersMu.Lock()
	listeners := make([]func(Event), 0, len(q.listeners))
	for _, fn := range q.listeners {
		listeners = append(listeners, fn)
	}
	q.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func (q *SyncQueue) eventLocked(kind EventKind, ids []string) Event {
	return Event{Kind: kind, ActionIDs: ids, Pending: len(q.items), Quarantined: len(q.quarantine)}
}

func (q *SyncQueue) indexLocked(id string) int {
	for i, item := range q.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (q *SyncQueue) quarantineIndexLocked(id string) int {
	for i, qa := range q.quarantine {
		if qa.Action.ID == id {
			return i
		}
	}
	return -1
}
