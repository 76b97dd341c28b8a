package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrDuplicateNodeType is returned when a node type identifier is registered twice.
	ErrDuplicateNodeType = errors.New("node type already registered")
	// ErrSealed is returned when registering after startup has finished.
	ErrSealed = errors.New("node type registry is sealed")
)

// Role marks node types the graph engine treats structurally.
type Role int

const (
	RoleDefault Role = iota
	// RoleGroup nodes wrap a whole tree and mirror its interface.
	RoleGroup
	// RoleGroupInput nodes expose a tree's interface inputs as outputs.
	RoleGroupInput
	// RoleGroupOutput nodes collect a tree's interface outputs as inputs.
	RoleGroupOutput
	// RoleFrame nodes are visual containers and may parent other nodes.
	RoleFrame
	// RoleReroute nodes pass a single value through.
	RoleReroute
)

func (r Role) String() string {
	switch r {
	case RoleGroup:
		return "group"
	case RoleGroupInput:
		return "group_input"
	case RoleGroupOutput:
		return "group_output"
	case RoleFrame:
		return "frame"
	case RoleReroute:
		return "reroute"
	default:
		return "default"
	}
}

// SocketTemplate declares a socket instantiated on every node of a type.
type SocketTemplate struct {
	// Identifier is stable across versions; it defaults to Name.
	Identifier string
	Name       string
	Type       string
	// Default overrides the socket type's default when set.
	Default cty.Value
	Min     *float64
	Max     *float64
	Hidden  bool
}

// ID returns the identifier, falling back to the display name.
func (s SocketTemplate) ID() string {
	if s.Identifier != "" {
		return s.Identifier
	}
	return s.Name
}

// NodeType is a registered node kind.
type NodeType struct {
	ID          string
	Label       string
	Description string
	Role        Role
	// TreeKinds lists the tree kinds the type may be added to; empty means all.
	TreeKinds []string
	Inputs    []SocketTemplate
	Outputs   []SocketTemplate
	Hooks     Hooks
	// Source records where the type was declared: "go" or a catalog path.
	Source string
}

// Polls reports whether the type may be added to a tree of the given kind.
func (nt *NodeType) Polls(treeKind string) bool {
	return len(nt.TreeKinds) == 0 || slices.Contains(nt.TreeKinds, treeKind)
}

// Describe returns the listing label for a node with the given parameters.
func (nt *NodeType) Describe(params Params) string {
	if nt.Hooks.Describe != nil {
		return nt.Hooks.Describe(params)
	}
	if nt.Label != "" {
		return nt.Label
	}
	return nt.ID
}

// Module is the interface that built-in node modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the socket types and node types for one application instance.
type Registry struct {
	// Sockets is the socket type registry shared by all trees of this registry.
	Sockets *sockettype.Registry

	mu        sync.RWMutex
	nodeTypes map[string]*NodeType
	order     []string
	hooks     map[string]Hooks
	// bindings records catalog lifecycle references for Validate.
	bindings []binding
	sealed   bool
}

// New creates a node type registry over the given socket type registry.
func New(sockets *sockettype.Registry) *Registry {
	if sockets == nil {
		sockets = sockettype.NewDefault()
	}
	return &Registry{
		Sockets:   sockets,
		nodeTypes: make(map[string]*NodeType),
		hooks:     make(map[string]Hooks),
	}
}

// RegisterNodeType adds a node type.
func (r *Registry) RegisterNodeType(nt *NodeType) error {
	if nt == nil || nt.ID == "" {
		return errors.New("node type must have an identifier")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %q: %w", nt.ID, ErrSealed)
	}
	if _, exists := r.nodeTypes[nt.ID]; exists {
		return fmt.Errorf("register %q: %w", nt.ID, ErrDuplicateNodeType)
	}
	if nt.Source == "" {
		nt.Source = "go"
	}
	r.nodeTypes[nt.ID] = nt
	r.order = append(r.order, nt.ID)
	return nil
}

// MustRegisterNodeType is RegisterNodeType for static module tables.
func (r *Registry) MustRegisterNodeType(nt *NodeType) {
	if err := r.RegisterNodeType(nt); err != nil {
		panic(err)
	}
}

// RegisterHooks registers a named hook set that catalogs can bind to.
func (r *Registry) RegisterHooks(name string, h Hooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[name]; exists {
		panic(fmt.Sprintf("hook set with name '%s' already registered", name))
	}
	r.hooks[name] = h
}

// HookSet returns a named hook set.
func (r *Registry) HookSet(name string) (Hooks, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hooks[name]
	return h, ok
}

// NodeType returns the node type registered under id.
func (r *Registry) NodeType(id string) (*NodeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nt, ok := r.nodeTypes[id]
	return nt, ok
}

// NodeTypes returns every node type in registration order.
func (r *Registry) NodeTypes() []*NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*NodeType, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.nodeTypes[id])
	}
	return out
}

// RegisterModules lets each module register its types.
func (r *Registry) RegisterModules(ctx context.Context, modules ...Module) {
	logger := ctxlog.FromContext(ctx)
	for _, m := range modules {
		m.Register(r)
	}
	logger.Debug("Node modules registered.", "modules", len(modules), "node_types", len(r.NodeTypes()))
}

// Seal ends the registration phase for node and socket types.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
	r.Sockets.Seal()
}
