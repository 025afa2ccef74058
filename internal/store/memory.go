package store

import (
	"context"
	"sync"

	"github.com/0xReLogic/colofail/internal/registry"
)

// Memory keeps the serialized registry in process. The value goes through
// the same JSON codec as the remote backends.
type Memory struct {
	mu  sync.Mutex
	raw *string
}

// NewMemory returns an unseeded in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// SetRaw overwrites the stored value verbatim, bypassing encoding.
func (m *Memory) SetRaw(raw string) {
	m.mu.Lock()
	m.raw = &raw
	m.mu.Unlock()
}

func (m *Memory) Load(ctx context.Context) (registry.FailingCountries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

func (m *Memory) loadLocked() (registry.FailingCountries, error) {
	if m.raw == nil {
		return nil, registry.ErrNotSeeded
	}
	return registry.Decode(*m.raw)
}

func (m *Memory) Save(ctx context.Context, fc registry.FailingCountries) error {
	raw, err := registry.Encode(fc)
	if err != nil {
		return err
	}
	m.SetRaw(raw)
	return nil
}

func (m *Memory) Update(ctx context.Context, fn func(registry.FailingCountries) (registry.FailingCountries, error)) (registry.FailingCountries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.loadLocked()
	if err != nil {
		return nil, err
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	raw, err := registry.Encode(next)
	if err != nil {
		return nil, err
	}
	m.raw = &raw
	return next, nil
}

func (m *Memory) Seed(ctx context.Context, fc registry.FailingCountries) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raw != nil {
		return false, nil
	}
	raw, err := registry.Encode(fc)
	if err != nil {
		return false, err
	}
	m.raw = &raw
	return true, nil
}

func (m *Memory) Close() error { return nil }
