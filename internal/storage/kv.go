// Package storage provides the durable key-value namespace local data lives in.
package storage

import (
	"context"
	"sync"
)

// KV is a flat string key-value namespace.
type KV interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Update replaces the value under key with fn's result. No other writer,
	// in this process or another one sharing the store, can interleave between
	// the read and the write. fn returning an error leaves the value untouched.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// UpdateFunc maps the current value (ok is false when key is absent) to the next one.
type UpdateFunc func(value string, ok bool) (string, error)

var (
	_ KV = (*SQLiteKV)(nil)
	_ KV = (*MemoryKV)(nil)
)

// MemoryKV is a process-local KV used in tests and when no database path is configured.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	next, err := fn(v, ok)
	if err != nil {
		return err
	}
	m.data[key] = next
	return nil
}
