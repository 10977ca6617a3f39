package connectivity

import (
	"context"
	"sync"
)

// HostSignal is a Source fed by the host platform's network callbacks,
// used when the core is embedded in the mobile app.
type HostSignal struct {
	mu    sync.RWMutex
	state NetworkState
	sink  func(NetworkState)
}

var _ Source = (*HostSignal)(nil)

// NewHostSignal creates a HostSignal holding an initial reading.
func NewHostSignal(initial NetworkState) *HostSignal {
	return &HostSignal{state: initial}
}

// Attach forwards every following Set to sink.
func (h *HostSignal) Attach(sink func(NetworkState)) {
	h.mu.Lock()
	h.sink = sink
	h.mu.Unlock()
}

// Set records a reading reported by the host.
func (h *HostSignal) Set(state NetworkState) {
	h.mu.Lock()
	h.state = state
	sink := h.sink
	h.mu.Unlock()

	if sink != nil {
		sink(state)
	}
}

// Current implements Source.
func (h *HostSignal) Current(context.Context) (NetworkState, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state, nil
}
