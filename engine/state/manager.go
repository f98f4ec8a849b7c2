// Package state implements the turn-scoped state cache: each manager loads a
// named document from durable storage once per turn, lets call sites read and
// write fields on it through lazy property accessors, and flushes it back on
// pipeline exit only when the document actually changed.
package state

import (
	"context"
	"fmt"

	"github.com/turnkit/turnstate/engine/core"
	"github.com/turnkit/turnstate/engine/infra/store"
	"github.com/turnkit/turnstate/engine/turn"
	"github.com/turnkit/turnstate/pkg/logger"
)

// Config holds the collaborators a Manager is built from.
type Config struct {
	// Name identifies the manager; it keys the per-turn cache slot, so two
	// managers sharing a turn must not share a name.
	Name string
	// Backend is the durable store documents are loaded from and saved to.
	Backend store.Backend
	// Key derives the storage key for a turn.
	Key KeyFunc
}

// Manager orchestrates the load-on-entry / save-on-exit lifecycle of one
// state document per turn. It holds no per-turn data itself; the working
// document lives in the turn's bag, so a single Manager serves any number of
// concurrent turns.
type Manager struct {
	name     string
	backend  store.Backend
	key      KeyFunc
	cacheKey string
}

// NewManager validates cfg and builds a manager.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("state manager config cannot be nil")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("state manager name is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("state manager backend cannot be nil")
	}
	if cfg.Key == nil {
		return nil, fmt.Errorf("state manager key strategy cannot be nil")
	}
	return &Manager{
		name:     cfg.Name,
		backend:  cfg.Backend,
		key:      cfg.Key,
		cacheKey: "state." + cfg.Name,
	}, nil
}

// Name returns the manager's identifier.
func (m *Manager) Name() string {
	return m.name
}

// StorageKey resolves the durable key for the given turn using the
// configured strategy.
func (m *Manager) StorageKey(t *turn.Context) (string, error) {
	if t == nil {
		return "", fmt.Errorf("turn context cannot be nil")
	}
	return m.key(t)
}

// entry returns the cache entry currently active for the turn, if any.
func (m *Manager) entry(t *turn.Context) (*Entry, bool) {
	v, ok := t.Get(m.cacheKey)
	if !ok {
		return nil, false
	}
	e, ok := v.(*Entry)
	return e, ok
}

// Load ensures a cache entry exists for the turn. When force is true, or no
// entry exists yet, or the existing entry has a nil document, the document is
// fetched from storage under this turn's key and a new entry installed — an
// absent key yields an empty document, not an error. Otherwise the already
// cached entry is kept untouched, preserving any in-turn mutations.
func (m *Manager) Load(ctx context.Context, t *turn.Context, force bool) error {
	if t == nil {
		return fmt.Errorf("turn context cannot be nil")
	}
	if e, ok := m.entry(t); ok && !force && e.Document() != nil {
		return nil
	}
	key, err := m.key(t)
	if err != nil {
		return fmt.Errorf("failed to resolve storage key for %q: %w", m.name, err)
	}
	found, err := m.backend.Read(ctx, []string{key})
	if err != nil {
		return fmt.Errorf("failed to load state %q: %w", m.name, err)
	}
	doc, ok := found[key]
	if !ok {
		doc = core.NewDocument()
	}
	t.Set(m.cacheKey, NewEntry(doc))
	logger.FromContext(ctx).Debug("state loaded",
		"manager", m.name, "key", key, "found", ok, "turn", t.ID)
	return nil
}

// Save flushes the turn's document to storage when it changed since the last
// load or save, or when force is true. When neither holds, storage is not
// touched. After a successful write the entry's fingerprint is refreshed so
// an immediately following Save is a no-op.
func (m *Manager) Save(ctx context.Context, t *turn.Context, force bool) error {
	if t == nil {
		return fmt.Errorf("turn context cannot be nil")
	}
	e, ok := m.entry(t)
	if !ok {
		// Nothing was loaded this turn; there is nothing to persist.
		return nil
	}
	if !force && !e.IsChanged() {
		return nil
	}
	key, err := m.key(t)
	if err != nil {
		return fmt.Errorf("failed to resolve storage key for %q: %w", m.name, err)
	}
	changes := map[string]core.Document{key: e.Document()}
	if err := m.backend.Write(ctx, changes); err != nil {
		return fmt.Errorf("failed to save state %q: %w", m.name, err)
	}
	e.Refresh()
	logger.FromContext(ctx).Debug("state saved",
		"manager", m.name, "key", key, "forced", force, "turn", t.ID)
	return nil
}

// Clear replaces the turn's cache entry with a fresh empty one, discarding
// any unsaved mutations. Storage is not touched; a subsequent Save persists
// the empty document only if it differs from what was last written. Clearing
// a turn that never loaded is a no-op.
func (m *Manager) Clear(ctx context.Context, t *turn.Context) error {
	if t == nil {
		return fmt.Errorf("turn context cannot be nil")
	}
	if _, ok := m.entry(t); !ok {
		return nil
	}
	t.Set(m.cacheKey, NewEntry(core.NewDocument()))
	logger.FromContext(ctx).Debug("state cleared", "manager", m.name, "turn", t.ID)
	return nil
}

// Run wraps a downstream continuation with the pipeline-boundary contract:
// state is re-fetched at the start of the turn, next runs, and the document
// is conditionally flushed afterwards. If next fails its error propagates
// unchanged and no save is attempted.
func (m *Manager) Run(ctx context.Context, t *turn.Context, next func() error) error {
	if next == nil {
		return fmt.Errorf("pipeline continuation cannot be nil")
	}
	if err := m.Load(ctx, t, true); err != nil {
		return err
	}
	if err := next(); err != nil {
		return err
	}
	return m.Save(ctx, t, false)
}

// GetField returns the raw value stored under name in the turn's document.
// Requires a prior Load; an absent field yields ErrNotSet.
func (m *Manager) GetField(t *turn.Context, name string) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("turn context cannot be nil")
	}
	if name == "" {
		return nil, fmt.Errorf("field name is required")
	}
	e, ok := m.entry(t)
	if !ok {
		return nil, fmt.Errorf("cannot read field %q: %w", name, ErrNotLoaded)
	}
	v, ok := e.Document().Get(name)
	if !ok {
		return nil, fmt.Errorf("field %q: %w", name, ErrNotSet)
	}
	return v, nil
}

// SetField writes value under name in the turn's document. Requires a prior
// Load. The write stays in cache until the next Save.
func (m *Manager) SetField(t *turn.Context, name string, value any) error {
	if t == nil {
		return fmt.Errorf("turn context cannot be nil")
	}
	if name == "" {
		return fmt.Errorf("field name is required")
	}
	e, ok := m.entry(t)
	if !ok {
		return fmt.Errorf("cannot write field %q: %w", name, ErrNotLoaded)
	}
	e.Document().Set(name, value)
	return nil
}

// DeleteField removes name from the turn's document if present. Removing an
// absent field is not an error.
func (m *Manager) DeleteField(t *turn.Context, name string) error {
	if t == nil {
		return fmt.Errorf("turn context cannot be nil")
	}
	if name == "" {
		return fmt.Errorf("field name is required")
	}
	e, ok := m.entry(t)
	if !ok {
		return fmt.Errorf("cannot delete field %q: %w", name, ErrNotLoaded)
	}
	e.Document().Delete(name)
	return nil
}
