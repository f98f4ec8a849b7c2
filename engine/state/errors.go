package state

import "errors"

var (
	// ErrNotSet is returned when a property is read without a default
	// factory and the field is absent from the turn's document.
	ErrNotSet = errors.New("state: property not set")

	// ErrWrongType is returned when a field is present but its stored value
	// cannot be converted to the requested type. This is deliberately
	// distinct from ErrNotSet: a bad value must fail loudly instead of
	// silently triggering the default-value path.
	ErrWrongType = errors.New("state: property has wrong type")

	// ErrNotLoaded is returned by field operations when no cache entry is
	// active for the turn, i.e. Load has not run.
	ErrNotLoaded = errors.New("state: no state loaded for turn")
)
