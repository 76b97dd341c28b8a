package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrInvalidDocument wraps every problem found while decoding a document.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrUnresolvedGroup is returned when a group node names a tree that is
	// neither in the document nor known to the resolver.
	ErrUnresolvedGroup = errors.New("group tree not found")
)

// Resolver finds trees outside the document being decoded, typically the
// other trees of a library.
type Resolver func(name string) (*graph.Tree, bool)

// Option configures Decode.
type Option func(*decoder)

// WithResolver resolves group references to trees the document does not
// contain.
func WithResolver(r Resolver) Option {
	return func(d *decoder) { d.resolve = r }
}

type decoder struct {
	reg     *registry.Registry
	resolve Resolver
	trees   map[string]*graph.Tree
	errs    []error
}

func (d *decoder) fail(format string, args ...any) {
	d.errs = append(d.errs, fmt.Errorf(format, args...))
}

// LoadFile reads and decodes a document from disk.
func LoadFile(ctx context.Context, reg *registry.Registry, path string, opts ...Option) ([]*graph.Tree, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return Decode(ctx, reg, path, src, opts...)
}

// Decode builds the trees of a document. Trees are returned in document
// order. Any problem fails the whole decode and no tree is returned.
func Decode(ctx context.Context, reg *registry.Registry, filename string, src []byte, opts ...Option) ([]*graph.Tree, error) {
	logger := ctxlog.FromContext(ctx).With("document", filename)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrInvalidDocument, filename, diags)
	}
	var root fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to decode %s: %w", ErrInvalidDocument, filename, diags)
	}

	d := &decoder{reg: reg, trees: make(map[string]*graph.Tree, len(root.Trees))}
	for _, opt := range opts {
		opt(d)
	}

	// Interfaces come first so group nodes mirror them when their tree is
	// assigned, whatever order the trees appear in.
	trees := make([]*graph.Tree, 0, len(root.Trees))
	for _, tb := range root.Trees {
		if _, dup := d.trees[tb.Name]; dup {
			d.fail("tree %q is declared twice", tb.Name)
			continue
		}
		tr := graph.NewTree(ctx, reg, tb.Name, tb.Kind)
		d.decodeInterface(tr, graph.Input, tb.Inputs)
		d.decodeInterface(tr, graph.Output, tb.Outputs)
		d.trees[tb.Name] = tr
		trees = append(trees, tr)
	}
	if len(d.errs) == 0 {
		for i, tb := range root.Trees {
			d.decodeTree(ctx, trees[i], tb)
		}
	}

	if len(d.errs) > 0 {
		for _, tr := range trees {
			release(tr)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, filename, errors.Join(d.errs...))
	}
	logger.Info("Document loaded.", "trees", len(trees))
	return trees, nil
}

func (d *decoder) decodeInterface(tr *graph.Tree, dir graph.Direction, blocks []*interfaceBlock) {
	for _, ib := range blocks {
		name := ib.Name
		if name == "" {
			name = ib.Identifier
		}
		h, err := tr.AddInterfaceSocketWithIdentifier(dir, ib.Type, name, ib.Identifier)
		if err != nil {
			d.fail("tree %q: interface %s %q: %w", tr.Name(), dir, ib.Identifier, err)
			continue
		}
		if ib.Min != nil || ib.Max != nil {
			if err := tr.SetInterfaceRange(h, ib.Min, ib.Max); err != nil {
				d.fail("tree %q: interface %s %q: %w", tr.Name(), dir, ib.Identifier, err)
			}
		}
		if present(ib.Default) {
			if err := tr.SetInterfaceDefault(h, ib.Default); err != nil {
				d.fail("tree %q: interface %s %q: %w", tr.Name(), dir, ib.Identifier, err)
			}
		}
	}
}

// nodeSockets maps document identifiers to the sockets they were loaded into.
type nodeSockets struct {
	handle  graph.NodeHandle
	inputs  map[string]graph.SocketHandle
	outputs map[string]graph.SocketHandle
}

func (d *decoder) decodeTree(ctx context.Context, tr *graph.Tree, tb *treeBlock) {
	logger := ctxlog.FromContext(ctx)
	nodes := make(map[string]*nodeSockets, len(tb.Nodes))

	for _, nb := range tb.Nodes {
		if _, dup := nodes[nb.Name]; dup {
			d.fail("tree %q: node %q is declared twice", tr.Name(), nb.Name)
			continue
		}
		ns := d.decodeNode(tr, nb)
		if ns != nil {
			nodes[nb.Name] = ns
		}
	}

	for _, nb := range tb.Nodes {
		if nb.Parent == "" {
			continue
		}
		child, okc := nodes[nb.Name]
		parent, okp := nodes[nb.Parent]
		if !okc || !okp {
			d.fail("tree %q: node %q: parent %q not found", tr.Name(), nb.Name, nb.Parent)
			continue
		}
		if err := tr.SetParent(child.handle, parent.handle); err != nil {
			d.fail("tree %q: node %q: %w", tr.Name(), nb.Name, err)
		}
	}

	for i, lb := range tb.Links {
		from, okf := nodes[lb.FromNode]
		to, okt := nodes[lb.ToNode]
		if !okf || !okt {
			d.fail("tree %q: link %d: node %q or %q not found", tr.Name(), i, lb.FromNode, lb.ToNode)
			continue
		}
		fs, okf := from.outputs[lb.FromSocket]
		ts, okt := to.inputs[lb.ToSocket]
		if !okf || !okt {
			d.fail("tree %q: link %d: socket %s.%s or %s.%s not found", tr.Name(), i, lb.FromNode, lb.FromSocket, lb.ToNode, lb.ToSocket)
			continue
		}
		if _, err := tr.AddLink(fs, ts, graph.Restore()); err != nil {
			d.fail("tree %q: link %s.%s -> %s.%s: %w", tr.Name(), lb.FromNode, lb.FromSocket, lb.ToNode, lb.ToSocket, err)
		}
	}

	if tb.Active != "" {
		if ns, ok := nodes[tb.Active]; ok {
			_ = tr.SetActive(ns.handle)
		}
	}
	logger.Debug("Tree decoded.", "tree", tr.Name(), "nodes", len(nodes), "links", len(tb.Links))
}

func (d *decoder) decodeNode(tr *graph.Tree, nb *nodeBlock) *nodeSockets {
	params, err := paramsFromValue(nb.Params)
	if err != nil {
		d.fail("tree %q: node %q: %w", tr.Name(), nb.Name, err)
		return nil
	}
	loc := [2]float64{}
	copy(loc[:], nb.Location)
	width := 0.0
	if nb.Width != nil {
		width = *nb.Width
	}

	if _, known := d.reg.NodeType(nb.Type); !known {
		u := graph.UnknownNode{
			TypeID:   nb.Type,
			Name:     nb.Name,
			Inputs:   rawSockets(nb.Inputs),
			Outputs:  rawSockets(nb.Outputs),
			Params:   params,
			Location: loc,
			Width:    width,
		}
		h, err := tr.AddUnknownNode(u)
		if err != nil {
			d.fail("tree %q: node %q: %w", tr.Name(), nb.Name, err)
			return nil
		}
		return d.collectSockets(tr, h)
	}

	h, err := tr.AddNode(nb.Type)
	if err != nil {
		d.fail("tree %q: node %q: %w", tr.Name(), nb.Name, err)
		return nil
	}
	if err := tr.SetName(h, nb.Name); err != nil {
		d.fail("tree %q: node %q: %w", tr.Name(), nb.Name, err)
		return nil
	}
	for k, v := range params {
		if err := tr.SetParam(h, k, v); err != nil {
			d.fail("tree %q: node %q: param %s: %w", tr.Name(), nb.Name, k, err)
		}
	}
	if nb.Location != nil {
		_ = tr.SetLocation(h, loc[0], loc[1])
	}
	if width > 0 {
		_ = tr.SetWidth(h, width)
	}
	if nb.Group != "" {
		inner, ok := d.trees[nb.Group]
		if !ok && d.resolve != nil {
			inner, ok = d.resolve(nb.Group)
		}
		if !ok {
			d.fail("tree %q: node %q: %w: %q", tr.Name(), nb.Name, ErrUnresolvedGroup, nb.Group)
			return nil
		}
		if err := tr.SetGroupTree(h, inner); err != nil {
			d.fail("tree %q: node %q: %w", tr.Name(), nb.Name, err)
			return nil
		}
	}

	d.applySockets(tr, h, nb.Name, graph.Input, nb.Inputs)
	d.applySockets(tr, h, nb.Name, graph.Output, nb.Outputs)
	return d.collectSockets(tr, h)
}

// applySockets writes document socket state onto a node of a known type.
// On plain nodes the socket list is made to match the document: sockets it
// omits are removed, missing ones are added and the order is restored.
// Group and group I/O nodes derive their sockets from an interface, so only
// per-socket state is applied to them.
func (d *decoder) applySockets(tr *graph.Tree, h graph.NodeHandle, node string, dir graph.Direction, blocks []*socketBlock) {
	info, ok := tr.Node(h)
	if !ok {
		return
	}
	mirrored := info.Role == registry.RoleGroup || info.Role == registry.RoleGroupInput || info.Role == registry.RoleGroupOutput

	if !mirrored {
		keep := make(map[string]bool, len(blocks))
		for _, sb := range blocks {
			keep[sb.Identifier] = true
		}
		for _, s := range tr.Sockets(h, dir) {
			if !s.Extension && !keep[s.Identifier] {
				tr.RemoveSocket(s.Handle)
			}
		}
	}

	for _, sb := range blocks {
		sh, ok := tr.SocketByIdentifier(h, dir, sb.Identifier)
		if !ok {
			var err error
			if dir == graph.Input {
				sh, err = tr.AddInputSocket(h, sb.Identifier, sb.Type)
			} else {
				sh, err = tr.AddOutputSocket(h, sb.Identifier, sb.Type)
			}
			if err != nil {
				d.fail("tree %q: node %q: %s %q: %w", tr.Name(), node, dir, sb.Identifier, err)
				continue
			}
		}
		if !mirrored {
			name := sb.Name
			if name == "" {
				name = sb.Identifier
			}
			if s, ok := tr.Socket(sh); ok && s.Name != name {
				_ = tr.SetSocketName(sh, name)
			}
		}
		if present(sb.Default) {
			if err := tr.SetSocketDefault(sh, sb.Default); err != nil {
				d.fail("tree %q: node %q: %s %q: %w", tr.Name(), node, dir, sb.Identifier, err)
			}
		}
		if sb.Hidden {
			_ = tr.SetSocketHidden(sh, true)
		}
		if sb.Disabled {
			_ = tr.SetSocketEnabled(sh, false)
		}
	}

	if mirrored {
		return
	}
	for want, sb := range blocks {
		cur := slices.IndexFunc(tr.Sockets(h, dir), func(s graph.SocketInfo) bool { return s.Identifier == sb.Identifier })
		if cur < 0 || cur == want {
			continue
		}
		if err := tr.MoveSocket(h, dir, cur, want); err != nil {
			d.fail("tree %q: node %q: %s %q: %w", tr.Name(), node, dir, sb.Identifier, err)
		}
	}
}

func (d *decoder) collectSockets(tr *graph.Tree, h graph.NodeHandle) *nodeSockets {
	ns := &nodeSockets{
		handle:  h,
		inputs:  map[string]graph.SocketHandle{},
		outputs: map[string]graph.SocketHandle{},
	}
	for _, s := range tr.Sockets(h, graph.Input) {
		ns.inputs[s.Identifier] = s.Handle
	}
	for _, s := range tr.Sockets(h, graph.Output) {
		ns.outputs[s.Identifier] = s.Handle
	}
	return ns
}

func rawSockets(blocks []*socketBlock) []graph.RawSocket {
	out := make([]graph.RawSocket, 0, len(blocks))
	for _, sb := range blocks {
		out = append(out, graph.RawSocket{
			Identifier: sb.Identifier,
			Name:       sb.Name,
			Type:       sb.Type,
			Default:    sb.Default,
			Hidden:     sb.Hidden,
		})
	}
	return out
}

func paramsFromValue(v cty.Value) (registry.Params, error) {
	params := registry.Params{}
	if !present(v) {
		return params, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, fmt.Errorf("params must be an object, got %s", v.Type().FriendlyName())
	}
	for it := v.ElementIterator(); it.Next(); {
		k, val := it.Element()
		params[k.AsString()] = val
	}
	return params, nil
}

func present(v cty.Value) bool {
	return !sockettype.IsNil(v) && !v.IsNull() && v.IsKnown()
}

// release unhooks the group nodes of a tree that is being discarded from
// the trees they wrap.
func release(tr *graph.Tree) {
	for _, h := range tr.Nodes() {
		if info, ok := tr.Node(h); ok && info.Group != nil {
			_ = tr.SetGroupTree(h, nil)
		}
	}
}
