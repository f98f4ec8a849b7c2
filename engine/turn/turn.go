package turn

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type contextKey string

const turnKey contextKey = "turn_context"

// Info carries the request identity a turn was created for. The fields feed
// storage-key strategies; any of them may be empty when the transport does
// not provide it.
type Info struct {
	ChannelID      string
	ConversationID string
	UserID         string
}

// Context is the unit of cache lifetime: one request/response cycle through
// the pipeline. It owns the per-turn bag that state managers stash their
// cache entries in, so repeated accessor calls within the same turn share
// one entry.
//
// A Context is confined to a single logical thread of control; it provides
// no locking and must not be shared across concurrently running turns.
type Context struct {
	ID     string
	Info   Info
	values map[string]any
}

// New creates a fresh turn with a unique ID and an empty bag.
func New(info Info) *Context {
	return &Context{
		ID:     uuid.NewString(),
		Info:   info,
		values: make(map[string]any),
	}
}

// Get returns the bag value stored under key.
func (t *Context) Get(key string) (any, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Set stores value in the bag under key, replacing any previous value.
func (t *Context) Set(key string, value any) {
	t.values[key] = value
}

// Delete removes key from the bag if present.
func (t *Context) Delete(key string) {
	delete(t.values, key)
}

// WithContext returns a context carrying the given turn.
func WithContext(ctx context.Context, t *Context) context.Context {
	return context.WithValue(ctx, turnKey, t)
}

// FromContext returns the turn carried by ctx.
func FromContext(ctx context.Context) (*Context, error) {
	t, ok := ctx.Value(turnKey).(*Context)
	if !ok {
		return nil, fmt.Errorf("turn context not found in context")
	}
	return t, nil
}
