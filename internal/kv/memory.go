package kv

import (
	"context"
	"errors"
	"sync"
)

// ErrInjected is returned by Memory while a write failure is injected.
var ErrInjected = errors.New("kv: injected write failure")

// Memory is a process-local Store. It does not survive restarts; the demo
// server and tests use it, and tests share one instance to simulate a restart.
type Memory struct {
	mu        sync.RWMutex
	data      map[string]string
	failWrite bool
	writes    int
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return ErrInjected
	}
	m.data[key] = value
	m.writes++
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return ErrInjected
	}
	delete(m.data, key)
	m.writes++
	return nil
}

// FailWrites makes every following Set and Delete fail until called with false.
func (m *Memory) FailWrites(fail bool) {
	m.mu.Lock()
	m.failWrite = fail
	m.mu.Unlock()
}

// Writes returns the number of successful writes.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
