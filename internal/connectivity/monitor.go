// Package connectivity decides whether the device can reach the remote
// system of record.
//
// The device is online when the live network signal reports a usable
// connection and the cashier has not forced offline mode. The manual
// override is persisted so it survives restarts.
package connectivity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fitri99main/itongPOS-sub000/internal/kv"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
)

// NetworkState is one reading of the live network signal.
type NetworkState struct {
	Connected         bool `json:"connected"`
	InternetReachable bool `json:"internet_reachable"`
}

// Usable reports whether the connection can carry remote writes.
func (s NetworkState) Usable() bool {
	return s.Connected && s.InternetReachable
}

// Source can be asked for the current live state.
type Source interface {
	Current(ctx context.Context) (NetworkState, error)
}

// Status is a snapshot of the monitor.
type Status struct {
	Online         bool         `json:"online"`
	ManualOverride bool         `json:"manual_override"`
	Live           NetworkState `json:"live"`
	ChangedAt      time.Time    `json:"changed_at"`
}

// Monitor tracks usable connectivity.
type Monitor struct {
	mu        sync.RWMutex
	writeMu   sync.Mutex
	store     kv.Store
	source    Source
	live      NetworkState
	readings  uint64 // live readings applied so far
	override  bool
	online    bool
	changedAt time.Time

	listenersMu sync.Mutex
	nextID      int
	listeners   map[int]func(Status)
	onOnline    map[int]func()
}

// NewMonitor creates a Monitor. source may be nil, in which case the live
// state only changes through UpdateLive.
func NewMonitor(store kv.Store, source Source) *Monitor {
	return &Monitor{
		store:     store,
		source:    source,
		listeners: make(map[int]func(Status)),
		onOnline:  make(map[int]func()),
	}
}

// Load restores the manual override and takes an initial live reading.
// It does not notify listeners.
func (m *Monitor) Load(ctx context.Context) error {
	value, _, err := m.store.Get(ctx, kv.KeyManualOverride)
	if err != nil {
		return fmt.Errorf("failed to load manual override: %w", err)
	}
	live := m.queryLive(ctx)

	m.mu.Lock()
	m.override = value == "true"
	m.live = live
	m.online = !m.override && live.Usable()
	m.changedAt = time.Now()
	m.mu.Unlock()

	logging.Info("Connectivity loaded", map[string]interface{}{
		"online":          m.IsOnline(),
		"manual_override": value == "true",
	})
	return nil
}

// IsOnline reports whether remote calls should be attempted.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// IsManualOverrideEnabled reports whether offline mode is forced.
func (m *Monitor) IsManualOverrideEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.override
}

// Status returns a snapshot of the monitor.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{Online: m.online, ManualOverride: m.override, Live: m.live, ChangedAt: m.changedAt}
}

// SetManualOverride forces offline mode on or off. The flag is persisted
// before it takes effect. Clearing it re-queries the live source instead of
// assuming the device is online.
func (m *Monitor) SetManualOverride(ctx context.Context, enabled bool) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	var err error
	if enabled {
		err = m.store.Set(ctx, kv.KeyManualOverride, "true")
	} else {
		err = m.store.Delete(ctx, kv.KeyManualOverride)
	}
	if err != nil {
		return fmt.Errorf("failed to persist manual override: %w", err)
	}

	m.mu.Lock()
	m.override = enabled
	m.mu.Unlock()

	logging.Info("Manual offline override changed", map[string]interface{}{"enabled": enabled})

	if !enabled && m.source != nil {
		m.mu.RLock()
		seen := m.readings
		m.mu.RUnlock()
		m.applyQueried(m.queryLive(ctx), seen)
		return nil
	}
	m.refresh()
	return nil
}

// UpdateLive records a new reading from the live network signal.
func (m *Monitor) UpdateLive(state NetworkState) {
	m.mu.Lock()
	m.live = state
	m.readings++
	m.recomputeLocked()
}

// Subscribe registers fn for every change of the online state.
func (m *Monitor) Subscribe(fn func(Status)) (unsubscribe func()) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

// OnOnline registers fn for the offline to online edge only.
func (m *Monitor) OnOnline(fn func()) (unsubscribe func()) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	id := m.nextID
	m.nextID++
	m.onOnline[id] = fn
	return func() {
		m.listenersMu.Lock()
		delete(m.onOnline, id)
		m.listenersMu.Unlock()
	}
}

// queryLive asks the source for a reading. A failed query counts as offline.
func (m *Monitor) queryLive(ctx context.Context) NetworkState {
	if m.source == nil {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.live
	}
	state, err := m.source.Current(ctx)
	if err != nil {
		logging.Warn("Live connectivity query failed", map[string]interface{}{"error": err.Error()})
		return NetworkState{}
	}
	return state
}

// applyQueried stores a reading obtained by querying the source, unless a
// newer reading arrived through UpdateLive while the query was in flight.
func (m *Monitor) applyQueried(live NetworkState, seen uint64) {
	m.mu.Lock()
	if m.readings == seen {
		m.live = live
		m.readings++
	}
	m.recomputeLocked()
}

// refresh recomputes the online flag from the current reading.
func (m *Monitor) refresh() {
	m.mu.Lock()
	m.recomputeLocked()
}

// recomputeLocked recomputes the online flag, releases m.mu and notifies
// listeners when the flag changed. m.mu must be held.
func (m *Monitor) recomputeLocked() {
	was := m.online
	m.online = !m.override && m.live.Usable()
	changed := was != m.online
	if changed {
		m.changedAt = time.Now()
	}
	status := Status{Online: m.online, ManualOverride: m.override, Live: m.live, ChangedAt: m.changedAt}
	m.mu.Unlock()

	if !changed {
		return
	}

	logging.Info("Online status changed", map[string]interface{}{
		"was_online":      was,
		"is_online":       status.Online,
		"manual_override": status.ManualOverride,
	})

	m.listenersMu.Lock()
	listeners := make([]func(Status), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	var edge []func()
	if status.Online {
		for _, fn := range m.onOnline {
			edge = append(edge, fn)
		}
	}
	m.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
	for _, fn := range edge {
		fn()
	}
}
