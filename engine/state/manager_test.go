package state

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnkit/turnstate/engine/core"
	"github.com/turnkit/turnstate/engine/infra/store"
	"github.com/turnkit/turnstate/engine/turn"
	"github.com/turnkit/turnstate/pkg/logger"
)

// spyBackend counts storage calls so tests can assert that saves touch
// storage exactly when the contract says they should.
type spyBackend struct {
	store.Backend
	reads  int
	writes int
}

func newSpyBackend() *spyBackend {
	return &spyBackend{Backend: store.NewMemory()}
}

func (s *spyBackend) Read(ctx context.Context, keys []string) (map[string]core.Document, error) {
	s.reads++
	return s.Backend.Read(ctx, keys)
}

func (s *spyBackend) Write(ctx context.Context, changes map[string]core.Document) error {
	s.writes++
	return s.Backend.Write(ctx, changes)
}

func newTestContext(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(t.Context(), logger.NewForTests())
}

func newTestManager(t *testing.T, backend store.Backend) *Manager {
	t.Helper()
	m, err := NewManager(&Config{
		Name:    "conversation",
		Backend: backend,
		Key:     KeyByConversation(),
	})
	require.NoError(t, err)
	return m
}

func newTestTurn() *turn.Context {
	return turn.New(turn.Info{
		ChannelID:      "web",
		ConversationID: "conv-1",
		UserID:         "user-1",
	})
}

func TestNewManager(t *testing.T) {
	t.Run("Should reject nil config", func(t *testing.T) {
		_, err := NewManager(nil)
		assert.Error(t, err)
	})

	t.Run("Should reject empty name", func(t *testing.T) {
		_, err := NewManager(&Config{Backend: store.NewMemory(), Key: StaticKey("k")})
		assert.Error(t, err)
	})

	t.Run("Should reject nil backend", func(t *testing.T) {
		_, err := NewManager(&Config{Name: "s", Key: StaticKey("k")})
		assert.Error(t, err)
	})

	t.Run("Should reject nil key strategy", func(t *testing.T) {
		_, err := NewManager(&Config{Name: "s", Backend: store.NewMemory()})
		assert.Error(t, err)
	})
}

func TestManagerLoad(t *testing.T) {
	t.Run("Should install an empty document when the key is absent", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)
		tc := newTestTurn()

		require.NoError(t, m.Load(ctx, tc, false))
		v, err := m.GetField(tc, "anything")
		assert.ErrorIs(t, err, ErrNotSet)
		assert.Nil(t, v)
		assert.Equal(t, 1, backend.reads)
	})

	t.Run("Should not re-fetch when an entry is already cached", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)
		tc := newTestTurn()

		require.NoError(t, m.Load(ctx, tc, false))
		require.NoError(t, m.Load(ctx, tc, false))
		assert.Equal(t, 1, backend.reads)
	})

	t.Run("Should preserve in-turn mutations across repeated non-forced loads", func(t *testing.T) {
		ctx := newTestContext(t)
		m := newTestManager(t, newSpyBackend())
		tc := newTestTurn()

		require.NoError(t, m.Load(ctx, tc, false))
		require.NoError(t, m.SetField(tc, "draft", "unsaved"))
		require.NoError(t, m.Load(ctx, tc, false))
		v, err := m.GetField(tc, "draft")
		require.NoError(t, err)
		assert.Equal(t, "unsaved", v)
	})

	t.Run("Should discard in-turn mutations on forced load", func(t *testing.T) {
		ctx := newTestContext(t)
		m := newTestManager(t, newSpyBackend())
		tc := newTestTurn()

		require.NoError(t, m.Load(ctx, tc, false))
		require.NoError(t, m.SetField(tc, "draft", "unsaved"))
		require.NoError(t, m.Load(ctx, tc, true))
		_, err := m.GetField(tc, "draft")
		assert.ErrorIs(t, err, ErrNotSet)
	})

	t.Run("Should reject nil turn context", func(t *testing.T) {
		ctx := newTestContext(t)
		m := newTestManager(t, newSpyBackend())
		assert.Error(t, m.Load(ctx, nil, false))
	})

	t.Run("Should propagate key strategy failures", func(t *testing.T) {
		ctx := newTestContext(t)
		m := newTestManager(t, newSpyBackend())
		tc := turn.New(turn.Info{ChannelID: "web"}) // no conversation ID
		assert.Error(t, m.Load(ctx, tc, false))
	})
}

func TestManagerSave(t *testing.T) {
	t.Run("Should issue zero writes when nothing changed", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)
		tc := newTestTurn()

		require.NoError(t, m.Load(ctx, tc, false))
		require.NoError(t, m.Save(ctx, tc, false))
		assert.Equal(t, 0, backend.writes)
	})

	t.Run("Should issue exactly one write after a mutation and none after", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)
		tc := newTestTurn()

		require.NoError(t, m.Load(ctx, tc, false))
		require.NoError(t, m.SetField(tc, "count", 1))
		require.NoError(t, m.Save(ctx, tc, false))
		assert.Equal(t, 1, backend.writes)

		require.NoError(t, m.Save(ctx, tc, false))
		assert.Equal(t, 1, backend.writes)
	})

	t.Run("Should write even untouched state when forced", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)
		tc := newTestTurn()

		require.NoError(t, m.Load(ctx, tc, false))
		require.NoError(t, m.Save(ctx, tc, true))
		assert.Equal(t, 1, backend.writes)
	})

	t.Run("Should be a no-op when nothing was loaded this turn", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)

		require.NoError(t, m.Save(ctx, newTestTurn(), false))
		assert.Equal(t, 0, backend.writes)
	})

	t.Run("Should detect nested mutations", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)
		tc := newTestTurn()

		require.NoError(t, m.Load(ctx, tc, false))
		require.NoError(t, m.SetField(tc, "profile", map[string]any{"visits": 1}))
		require.NoError(t, m.Save(ctx, tc, false))
		require.Equal(t, 1, backend.writes)

		v, err := m.GetField(tc, "profile")
		require.NoError(t, err)
		v.(map[string]any)["visits"] = 2
		require.NoError(t, m.Save(ctx, tc, false))
		assert.Equal(t, 2, backend.writes)
	})

	t.Run("Should persist across turns", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)

		first := newTestTurn()
		require.NoError(t, m.Load(ctx, first, false))
		require.NoError(t, m.SetField(first, "count", 1))
		require.NoError(t, m.Save(ctx, first, false))

		second := newTestTurn()
		require.NoError(t, m.Load(ctx, second, true))
		v, err := m.GetField(second, "count")
		require.NoError(t, err)
		assert.EqualValues(t, 1, v)
	})
}

func TestManagerClear(t *testing.T) {
	t.Run("Should discard uncommitted mutations without touching storage", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)
		tc := newTestTurn()

		require.NoError(t, m.Load(ctx, tc, false))
		require.NoError(t, m.SetField(tc, "secret", "do-not-keep"))
		require.NoError(t, m.Clear(ctx, tc))
		require.NoError(t, m.Save(ctx, tc, false))

		// The discarded mutation must never reach storage.
		fresh := newTestTurn()
		require.NoError(t, m.Load(ctx, fresh, true))
		_, err := m.GetField(fresh, "secret")
		assert.ErrorIs(t, err, ErrNotSet)
	})

	t.Run("Should be a no-op when no entry exists", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)

		require.NoError(t, m.Clear(ctx, newTestTurn()))
		assert.Equal(t, 0, backend.reads)
		assert.Equal(t, 0, backend.writes)
	})

	t.Run("Should let a save persist the emptied document over a stored one", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)

		first := newTestTurn()
		require.NoError(t, m.Load(ctx, first, false))
		require.NoError(t, m.SetField(first, "count", 1))
		require.NoError(t, m.Save(ctx, first, false))

		second := newTestTurn()
		require.NoError(t, m.Load(ctx, second, true))
		require.NoError(t, m.Clear(ctx, second))
		require.NoError(t, m.Save(ctx, second, false))

		third := newTestTurn()
		require.NoError(t, m.Load(ctx, third, true))
		_, err := m.GetField(third, "count")
		assert.ErrorIs(t, err, ErrNotSet)
	})
}

func TestManagerRun(t *testing.T) {
	t.Run("Should force load, run next and save on success", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)
		tc := newTestTurn()

		err := m.Run(ctx, tc, func() error {
			return m.SetField(tc, "greeted", true)
		})
		require.NoError(t, err)
		assert.Equal(t, 1, backend.writes)
	})

	t.Run("Should propagate next errors without saving", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)
		tc := newTestTurn()

		boom := errors.New("handler failed")
		err := m.Run(ctx, tc, func() error {
			if err := m.SetField(tc, "greeted", true); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, backend.writes)
	})

	t.Run("Should skip the write when next leaves state untouched", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		m := newTestManager(t, backend)

		require.NoError(t, m.Run(ctx, newTestTurn(), func() error { return nil }))
		assert.Equal(t, 0, backend.writes)
	})

	t.Run("Should reject nil continuation", func(t *testing.T) {
		ctx := newTestContext(t)
		m := newTestManager(t, newSpyBackend())
		assert.Error(t, m.Run(ctx, newTestTurn(), nil))
	})
}

func TestManagerFields(t *testing.T) {
	t.Run("Should fail field access before any load", func(t *testing.T) {
		m := newTestManager(t, newSpyBackend())
		tc := newTestTurn()

		_, err := m.GetField(tc, "f")
		assert.ErrorIs(t, err, ErrNotLoaded)
		assert.ErrorIs(t, m.SetField(tc, "f", 1), ErrNotLoaded)
		assert.ErrorIs(t, m.DeleteField(tc, "f"), ErrNotLoaded)
	})

	t.Run("Should reject empty field names", func(t *testing.T) {
		ctx := newTestContext(t)
		m := newTestManager(t, newSpyBackend())
		tc := newTestTurn()
		require.NoError(t, m.Load(ctx, tc, false))

		_, err := m.GetField(tc, "")
		assert.Error(t, err)
		assert.Error(t, m.SetField(tc, "", 1))
		assert.Error(t, m.DeleteField(tc, ""))
	})

	t.Run("Should delete fields idempotently", func(t *testing.T) {
		ctx := newTestContext(t)
		m := newTestManager(t, newSpyBackend())
		tc := newTestTurn()
		require.NoError(t, m.Load(ctx, tc, false))

		require.NoError(t, m.SetField(tc, "f", 1))
		require.NoError(t, m.DeleteField(tc, "f"))
		require.NoError(t, m.DeleteField(tc, "f"))
		_, err := m.GetField(tc, "f")
		assert.ErrorIs(t, err, ErrNotSet)
	})
}

func TestManagersShareTurn(t *testing.T) {
	t.Run("Should keep independent cache slots per manager", func(t *testing.T) {
		ctx := newTestContext(t)
		backend := newSpyBackend()
		tc := newTestTurn()

		conv := newTestManager(t, backend)
		user, err := NewManager(&Config{Name: "user", Backend: backend, Key: KeyByUser()})
		require.NoError(t, err)

		require.NoError(t, conv.Load(ctx, tc, false))
		require.NoError(t, user.Load(ctx, tc, false))
		require.NoError(t, conv.SetField(tc, "topic", "billing"))
		require.NoError(t, user.SetField(tc, "name", "ada"))

		require.NoError(t, conv.Save(ctx, tc, false))
		require.NoError(t, user.Save(ctx, tc, false))
		require.Equal(t, 2, backend.writes)

		next := newTestTurn()
		require.NoError(t, conv.Load(ctx, next, true))
		require.NoError(t, user.Load(ctx, next, true))
		topic, err := conv.GetField(next, "topic")
		require.NoError(t, err)
		name, err := user.GetField(next, "name")
		require.NoError(t, err)
		assert.Equal(t, "billing", topic)
		assert.Equal(t, "ada", name)
	})
}

func TestStorageKey(t *testing.T) {
	t.Run("Should expose the resolved storage key", func(t *testing.T) {
		m := newTestManager(t, newSpyBackend())
		key, err := m.StorageKey(newTestTurn())
		require.NoError(t, err)
		assert.Equal(t, "web/conversations/conv-1", key)
	})

	t.Run("Should reject nil turn context", func(t *testing.T) {
		m := newTestManager(t, newSpyBackend())
		_, err := m.StorageKey(nil)
		assert.Error(t, err)
	})
}

// failingBackend returns errors on every operation; used to assert that
// storage failures propagate unchanged.
type failingBackend struct{}

func (failingBackend) Read(context.Context, []string) (map[string]core.Document, error) {
	return nil, fmt.Errorf("storage unavailable")
}

func (failingBackend) Write(context.Context, map[string]core.Document) error {
	return fmt.Errorf("storage unavailable")
}

func (failingBackend) Delete(context.Context, ...string) error {
	return fmt.Errorf("storage unavailable")
}

// writeFailBackend reads normally but rejects every write.
type writeFailBackend struct {
	store.Backend
}

func (writeFailBackend) Write(context.Context, map[string]core.Document) error {
	return fmt.Errorf("storage unavailable")
}

func TestStorageFailures(t *testing.T) {
	t.Run("Should propagate read failures from load", func(t *testing.T) {
		ctx := newTestContext(t)
		m := newTestManager(t, failingBackend{})
		err := m.Load(ctx, newTestTurn(), false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage unavailable")
	})

	t.Run("Should propagate write failures from save and keep state dirty", func(t *testing.T) {
		ctx := newTestContext(t)
		tc := newTestTurn()

		failing, err := NewManager(&Config{Name: "failing", Backend: writeFailBackend{store.NewMemory()}, Key: StaticKey("k")})
		require.NoError(t, err)
		require.NoError(t, failing.Load(ctx, tc, false))
		require.NoError(t, failing.SetField(tc, "count", 1))
		saveErr := failing.Save(ctx, tc, false)
		require.Error(t, saveErr)

		// The failed write must not refresh the fingerprint.
		e, ok := failing.entry(tc)
		require.True(t, ok)
		assert.True(t, e.IsChanged())
	})
}
