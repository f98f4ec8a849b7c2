package core

import (
	"encoding/json"
	"fmt"
)

// Document is the mutable named-field bag cached and persisted per turn.
// Field ordering is irrelevant; values must be JSON-serializable.
type Document map[string]any

// NewDocument returns an empty document ready for field writes.
func NewDocument() Document {
	return make(Document)
}

// Get returns the raw value stored under name.
func (d Document) Get(name string) (any, bool) {
	v, ok := d[name]
	return v, ok
}

// Set writes value under name, allocating nothing beyond the map entry.
func (d Document) Set(name string, value any) {
	d[name] = value
}

// Delete removes name if present. Deleting an absent field is not an error.
func (d Document) Delete(name string) {
	delete(d, name)
}

// Clone returns a deep copy of the document via a JSON round trip, so the
// copy shares no nested structure with the original.
func (d Document) Clone() (Document, error) {
	if d == nil {
		return nil, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to clone document: %w", err)
	}
	out := make(Document, len(d))
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to clone document: %w", err)
	}
	return out, nil
}
