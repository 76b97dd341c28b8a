package sockettype

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrDuplicateType is returned when a type identifier is registered twice.
	ErrDuplicateType = errors.New("socket type already registered")
	// ErrUnknownSocketType is returned for identifiers that were never registered.
	ErrUnknownSocketType = errors.New("unknown socket type")
	// ErrSealed is returned when registering after startup has finished.
	ErrSealed = errors.New("socket type registry is sealed")
)

// Type is an immutable registered socket type.
type Type struct {
	id   string
	kind Kind
	def  cty.Value
}

// ID returns the stable type identifier.
func (t *Type) ID() string { return t.id }

// Kind returns the value domain.
func (t *Type) Kind() Kind { return t.kind }

// Default returns the value used when neither socket nor template sets one.
func (t *Type) Default() cty.Value { return t.def }

func (t *Type) String() string {
	return fmt.Sprintf("%s(%s)", t.id, t.kind)
}

// Registry maps type identifiers to socket types and owns the conversion
// policy used to decide link compatibility.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]*Type
	order  []string
	conv   *Conversions
	sealed bool
}

// NewRegistry creates an empty registry. A nil table selects DefaultConversions.
func NewRegistry(conv *Conversions) *Registry {
	if conv == nil {
		conv = DefaultConversions()
	}
	return &Registry{
		types: make(map[string]*Type),
		conv:  conv,
	}
}

// Register adds a socket type. The default is coerced into the kind's
// domain; a nil default selects the kind's zero value.
func (r *Registry) Register(id string, kind Kind, def cty.Value) (*Type, error) {
	if id == "" {
		return nil, errors.New("socket type identifier must not be empty")
	}
	value, err := Coerce(kind, def)
	if err != nil {
		return nil, fmt.Errorf("socket type %q: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return nil, fmt.Errorf("register %q: %w", id, ErrSealed)
	}
	if _, exists := r.types[id]; exists {
		return nil, fmt.Errorf("register %q: %w", id, ErrDuplicateType)
	}

	t := &Type{id: id, kind: kind, def: value}
	r.types[id] = t
	r.order = append(r.order, id)
	return t, nil
}

// Lookup returns the type registered under id.
func (r *Registry) Lookup(id string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[id]
	return t, ok
}

// Resolve is Lookup returning ErrUnknownSocketType for missing identifiers.
func (r *Registry) Resolve(id string) (*Type, error) {
	if t, ok := r.Lookup(id); ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSocketType, id)
}

// Types returns every registered type in registration order.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Type, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.types[id])
	}
	return out
}

// Seal ends the registration phase.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Conversions returns the conversion policy in use.
func (r *Registry) Conversions() *Conversions {
	return r.conv
}

// IsCompatible reports whether an output of type from may feed an input of
// type to.
func (r *Registry) IsCompatible(from, to *Type) bool {
	if from == nil || to == nil {
		return false
	}
	if from == to || from.kind == to.kind {
		return true
	}
	if from.kind == KindVirtual || to.kind == KindVirtual {
		return true
	}
	_, ok := r.conv.Lookup(from.kind, to.kind)
	return ok
}

// Convert carries a value produced by a from-typed output into the domain
// of a to-typed input.
func (r *Registry) Convert(v cty.Value, from, to *Type) (cty.Value, error) {
	if from == nil || to == nil {
		return v, nil
	}
	if from.kind == to.kind || to.kind == KindVirtual {
		return v, nil
	}
	fromKind := from.kind
	if fromKind == KindVirtual {
		k, ok := KindOf(v)
		if !ok {
			return Coerce(to.kind, v)
		}
		if k == to.kind {
			return v, nil
		}
		fromKind = k
	}
	fn, ok := r.conv.Lookup(fromKind, to.kind)
	if !ok {
		return cty.NilVal, fmt.Errorf("no implicit conversion from %s to %s", from, to)
	}
	if IsNil(v) || v.IsNull() || !v.IsKnown() {
		return to.def, nil
	}
	return fn(v)
}
