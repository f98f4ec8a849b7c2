package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/turnkit/turnstate/engine/core"
)

// Memory is an in-process Backend keeping documents in a mutex-guarded map.
// Documents are deep-copied on the way in and out, so callers can mutate
// what they read or wrote without touching the stored copy.
type Memory struct {
	mu   sync.RWMutex
	data map[string]core.Document
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]core.Document)}
}

func (m *Memory) Read(_ context.Context, keys []string) (map[string]core.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]core.Document, len(keys))
	for _, key := range keys {
		doc, ok := m.data[key]
		if !ok {
			continue
		}
		clone, err := doc.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to read key %q: %w", key, err)
		}
		out[key] = clone
	}
	return out, nil
}

func (m *Memory) Write(_ context.Context, changes map[string]core.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, doc := range changes {
		clone, err := doc.Clone()
		if err != nil {
			return fmt.Errorf("failed to write key %q: %w", key, err)
		}
		m.data[key] = clone
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Len reports the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
