package registry

import (
	"context"

	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// Params is a node's type-specific parameter block.
type Params map[string]cty.Value

// Clone returns a shallow copy. cty values are immutable so this is a full copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Derived is the per-node state recomputed by Update, keyed by output
// socket identifier.
type Derived map[string]cty.Value

// Hooks is the capability table of a node type. Nil entries fall back to
// the engine defaults.
type Hooks struct {
	// Init fills parameter defaults on a freshly added node.
	Init func(params Params)
	// Free runs when the node is removed from its tree.
	Free func(params Params)
	// Copy produces the parameter block of a duplicated node.
	Copy func(src Params) Params
	// ValidateLink may veto a structurally legal link touching the node.
	ValidateLink func(c LinkCandidate) bool
	// Update recomputes the node's derived state from its inputs.
	Update UpdateFunc
	// Describe returns a short label for listings; the headless stand-in
	// for drawing the node.
	Describe func(params Params) string
}

// merge fills nil entries of h from other.
func (h *Hooks) merge(other Hooks) {
	if h.Init == nil {
		h.Init = other.Init
	}
	if h.Free == nil {
		h.Free = other.Free
	}
	if h.Copy == nil {
		h.Copy = other.Copy
	}
	if h.ValidateLink == nil {
		h.ValidateLink = other.ValidateLink
	}
	if h.Update == nil {
		h.Update = other.Update
	}
	if h.Describe == nil {
		h.Describe = other.Describe
	}
}

// SocketInfo describes one end of a link candidate.
type SocketInfo struct {
	Node       string
	NodeType   string
	Identifier string
	Name       string
	Type       *sockettype.Type
	Output     bool
}

// LinkCandidate is a link that passed the structural checks and is offered
// to the ValidateLink hooks of both end nodes.
type LinkCandidate struct {
	From    SocketInfo
	To      SocketInfo
	Sockets *sockettype.Registry
	// Incoming is true when the hook being asked belongs to the destination node.
	Incoming bool
}

// DefaultValidateLink accepts any pair of compatible socket types.
func DefaultValidateLink(c LinkCandidate) bool {
	return c.Sockets.IsCompatible(c.From.Type, c.To.Type)
}

// OutputSocket describes an output the Update hook is expected to fill.
type OutputSocket struct {
	Identifier string
	Type       *sockettype.Type
	// Default is the socket's literal default; nil means the type default.
	Default cty.Value
}

// UpdateInput is everything an Update hook may read. Hooks must not retain it.
type UpdateInput struct {
	Node    string
	TypeID  string
	Params  Params
	Inputs  map[string]cty.Value
	Outputs []OutputSocket
	// Interface holds the values fed into a group input node by the group
	// node evaluating the enclosing tree. Nil at top level.
	Interface map[string]cty.Value
	// Subgraph evaluates the tree referenced by a group node. Nil for
	// nodes without a group tree.
	Subgraph func(ctx context.Context, inputs map[string]cty.Value) (Derived, error)
	// Sockets converts between socket types.
	Sockets *sockettype.Registry
}

// Input returns the resolved value of an input socket.
func (in *UpdateInput) Input(identifier string) cty.Value {
	if v, ok := in.Inputs[identifier]; ok {
		return v
	}
	return cty.NilVal
}

// Float reads an input as a number.
func (in *UpdateInput) Float(identifier string) float64 {
	return sockettype.AsFloat(in.Input(identifier))
}

// Param returns a parameter or fallback when unset.
func (in *UpdateInput) Param(key string, fallback cty.Value) cty.Value {
	if v, ok := in.Params[key]; ok && !sockettype.IsNil(v) && !v.IsNull() {
		return v
	}
	return fallback
}

// StringParam reads a string parameter.
func (in *UpdateInput) StringParam(key, fallback string) string {
	v := in.Param(key, cty.StringVal(fallback))
	if s := sockettype.AsString(v); s != "" {
		return s
	}
	return fallback
}

// UpdateFunc recomputes a node's derived state. It must only read the
// input it is given and must not touch other nodes.
type UpdateFunc func(ctx context.Context, in *UpdateInput) (Derived, error)

// DefaultUpdate fills every output with its type's default value.
func DefaultUpdate(_ context.Context, in *UpdateInput) (Derived, error) {
	out := make(Derived, len(in.Outputs))
	for _, o := range in.Outputs {
		switch {
		case !sockettype.IsNil(o.Default):
			out[o.Identifier] = o.Default
		case o.Type != nil:
			out[o.Identifier] = o.Type.Default()
		}
	}
	return out, nil
}

// DefaultHooks is the table used for every nil entry of a node type's hooks.
func DefaultHooks() Hooks {
	return Hooks{
		Copy:         func(src Params) Params { return src.Clone() },
		ValidateLink: DefaultValidateLink,
		Update:       DefaultUpdate,
	}
}

// Effective returns the type's hooks with nil entries filled from DefaultHooks.
func (nt *NodeType) Effective() Hooks {
	h := nt.Hooks
	h.merge(DefaultHooks())
	return h
}
