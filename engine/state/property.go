package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/turnkit/turnstate/engine/turn"
)

// Property is a named, lazily resolving handle to one field of its manager's
// document. It owns no data: every call ensures the manager has loaded the
// turn's entry, then operates on whichever entry is active, so call sites can
// treat state fields like ordinary named variables without sequencing Load
// themselves. The implicit load never overwrites an already loaded, possibly
// mutated document within the same turn.
type Property[T any] struct {
	manager *Manager
	name    string
}

// NewProperty binds a typed accessor to a (manager, field name) pair.
func NewProperty[T any](m *Manager, name string) (*Property[T], error) {
	if m == nil {
		return nil, fmt.Errorf("property manager cannot be nil")
	}
	if name == "" {
		return nil, fmt.Errorf("property name is required")
	}
	return &Property[T]{manager: m, name: name}, nil
}

// Name returns the field name this property reads and writes.
func (p *Property[T]) Name() string {
	return p.name
}

// Get returns the property's current value for the turn. When the field is
// absent and a default factory is given, the factory runs once, its result is
// written back into the cached document (not storage) and returned; without a
// factory, absence yields ErrNotSet. A present value that cannot be converted
// to T yields ErrWrongType.
func (p *Property[T]) Get(ctx context.Context, t *turn.Context, defaultFactory ...func() T) (T, error) {
	var zero T
	if err := p.manager.Load(ctx, t, false); err != nil {
		return zero, err
	}
	raw, err := p.manager.GetField(t, p.name)
	if err != nil {
		if errors.Is(err, ErrNotSet) && len(defaultFactory) > 0 && defaultFactory[0] != nil {
			value := defaultFactory[0]()
			if err := p.manager.SetField(t, p.name, value); err != nil {
				return zero, err
			}
			return value, nil
		}
		return zero, err
	}
	return convertValue[T](p.name, raw)
}

// Set writes value under the property's name in the turn's document.
func (p *Property[T]) Set(ctx context.Context, t *turn.Context, value T) error {
	if err := p.manager.Load(ctx, t, false); err != nil {
		return err
	}
	return p.manager.SetField(t, p.name, value)
}

// Delete removes the property's field from the turn's document.
func (p *Property[T]) Delete(ctx context.Context, t *turn.Context) error {
	if err := p.manager.Load(ctx, t, false); err != nil {
		return err
	}
	return p.manager.DeleteField(t, p.name)
}

// convertValue coerces a raw document value into T. Values read back from
// storage went through a JSON round trip (numbers become float64, structs
// become maps), so plain type assertion is not enough; mapstructure handles
// the shape conversion while still rejecting genuinely incompatible values.
func convertValue[T any](name string, raw any) (T, error) {
	var out T
	if direct, ok := raw.(T); ok {
		return direct, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "json",
	})
	if err != nil {
		return out, fmt.Errorf("failed to build decoder for field %q: %w", name, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return out, fmt.Errorf("field %q holds %T: %w", name, raw, ErrWrongType)
	}
	return out, nil
}
