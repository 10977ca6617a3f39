package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType tags the kind of a queued action.
type ActionType string

const (
	ActionInsertTransaction ActionType = "InsertTransaction"
)

// Action is a pending remote mutation. The set of implementations is closed:
// every variant lives in this package and has exactly one processor handler.
type Action interface {
	Type() ActionType
	clone() Action
}

// InsertTransaction writes a completed sale: the header, then its line items.
type InsertTransaction struct {
	Header TransactionHeader     `json:"transaction"`
	Items  []TransactionLineItem `json:"items"`
}

// Type implements Action.
func (InsertTransaction) Type() ActionType { return ActionInsertTransaction }

func (a InsertTransaction) clone() Action {
	c := InsertTransaction{Header: a.Header.Clone()}
	if a.Items != nil {
		c.Items = make([]TransactionLineItem, len(a.Items))
		for i, item := range a.Items {
			c.Items[i] = item.Clone()
		}
	}
	return c
}

// UnknownAction holds a persisted action whose tag this build does not know.
// It is kept verbatim so a newer queue survives a downgrade.
type UnknownAction struct {
	Tag     ActionType
	Payload json.RawMessage
}

// Type implements Action.
func (a UnknownAction) Type() ActionType { return a.Tag }

func (a UnknownAction) clone() Action {
	return UnknownAction{Tag: a.Tag, Payload: append(json.RawMessage(nil), a.Payload...)}
}

// QueuedAction is an action waiting in the durable queue.
// ID is local to this device and is not the remote record id.
type QueuedAction struct {
	ID        string
	Action    Action
	Timestamp int64 // epoch ms
}

// TableName returns the storage key namespace for QueuedAction.
func (QueuedAction) TableName() string {
	return "offline_queue"
}

// Type returns the tag of the wrapped action.
func (q *QueuedAction) Type() ActionType {
	if q.Action == nil {
		return ""
	}
	return q.Action.Type()
}

// Time returns the Timestamp as time.Time.
func (q *QueuedAction) Time() time.Time {
	return time.UnixMilli(q.Timestamp)
}

// Clone returns a deep copy, so callers can never mutate a queued action.
func (q QueuedAction) Clone() QueuedAction {
	c := q
	if q.Action != nil {
		c.Action = q.Action.clone()
	}
	return c
}

type queuedActionJSON struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// MarshalJSON encodes the action as a tagged envelope.
func (q QueuedAction) MarshalJSON() ([]byte, error) {
	var payload json.RawMessage
	switch a := q.Action.(type) {
	case nil:
		return nil, fmt.Errorf("queued action %s has no action", q.ID)
	case UnknownAction:
		payload = a.Payload
	default:
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", a.Type(), err)
		}
		payload = data
	}

	return json.Marshal(queuedActionJSON{
		ID:        q.ID,
		Type:      q.Action.Type(),
		Payload:   payload,
		Timestamp: q.Timestamp,
	})
}

// UnmarshalJSON decodes a tagged envelope.
func (q *QueuedAction) UnmarshalJSON(data []byte) error {
	var env queuedActionJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.ID == "" {
		return fmt.Errorf("queued action without id")
	}

	action, err := DecodeAction(env.Type, env.Payload)
	if err != nil {
		return fmt.Errorf("queued action %s: %w", env.ID, err)
	}

	q.ID = env.ID
	q.Action = action
	q.Timestamp = env.Timestamp
	return nil
}

// DecodeAction decodes a payload for the given tag.
func DecodeAction(tag ActionType, payload json.RawMessage) (Action, error) {
	switch tag {
	case ActionInsertTransaction:
		var a InsertTransaction
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", tag, err)
		}
		return a, nil
	default:
		return UnknownAction{Tag: tag, Payload: append(json.RawMessage(nil), payload...)}, nil
	}
}
