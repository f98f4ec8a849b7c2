// Package store provides the durable key-value collaborators that state
// managers persist turn documents into. Backends are pluggable; the memory
// backend serves tests and single-process setups, the Redis backend serves
// shared deployments.
package store

import (
	"context"
	"errors"

	"github.com/turnkit/turnstate/engine/core"
)

// Canonical, backend-neutral errors.
var (
	ErrNotFound = errors.New("store: not found")
)

// Backend reads and writes opaque state documents by key. Implementations
// must be safe for concurrent use by independent turns; no multi-key
// transactional guarantee is required and the last successful write for a
// key wins.
type Backend interface {
	// Read fetches the documents for the given keys. Keys absent from
	// storage are simply missing from the returned map; absence is not an
	// error.
	Read(ctx context.Context, keys []string) (map[string]core.Document, error)

	// Write persists every document in changes under its key, creating or
	// replacing as necessary. Write is idempotent on identical input.
	Write(ctx context.Context, changes map[string]core.Document) error

	// Delete removes the given keys. Deleting absent keys is not an error.
	Delete(ctx context.Context, keys ...string) error
}
