package state

import (
	"github.com/turnkit/turnstate/engine/core"
)

// Entry is the per-turn cache slot contents for one manager: the working
// document plus the fingerprint taken at the last load or save. The
// fingerprint goes stale the moment the document is mutated and is only
// refreshed by a successful save.
type Entry struct {
	doc         core.Document
	fingerprint string
}

// NewEntry wraps doc with a fingerprint of its current content. A nil doc is
// replaced with an empty document so an entry always carries a usable bag.
func NewEntry(doc core.Document) *Entry {
	if doc == nil {
		doc = core.NewDocument()
	}
	return &Entry{doc: doc, fingerprint: core.Fingerprint(doc)}
}

// Document returns the mutable working document.
func (e *Entry) Document() core.Document {
	return e.doc
}

// IsChanged reports whether the document differs from its last persisted
// form, by comparing a freshly computed fingerprint against the stored one.
// Re-serializing the whole document keeps change detection uniform at any
// nesting depth; turn documents are expected to be small.
func (e *Entry) IsChanged() bool {
	return core.Fingerprint(e.doc) != e.fingerprint
}

// Refresh re-stamps the fingerprint to the document's current content,
// marking it clean. Called after a successful storage write.
func (e *Entry) Refresh() {
	e.fingerprint = core.Fingerprint(e.doc)
}
