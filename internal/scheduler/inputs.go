package scheduler

import (
	"context"
	"fmt"

	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// updateInput assembles what a node's Update hook may read.
func (p *pass) updateInput(ctx context.Context, sn *graph.SnapshotNode) (*registry.UpdateInput, error) {
	inputs, err := p.resolveInputs(ctx, sn)
	if err != nil {
		return nil, err
	}
	in := &registry.UpdateInput{
		Node:    sn.Name,
		TypeID:  sn.TypeID,
		Params:  sn.Params,
		Inputs:  inputs,
		Sockets: p.snap.Sockets,
	}
	for _, so := range sn.Outputs {
		if so.Extension {
			continue
		}
		in.Outputs = append(in.Outputs, registry.OutputSocket{Identifier: so.Identifier, Type: so.Type, Default: so.Default})
	}
	if sn.Role == registry.RoleGroupInput {
		in.Interface = p.iface
	}
	if sn.Group != nil {
		nested := sn.Group
		in.Subgraph = func(ctx context.Context, values map[string]cty.Value) (registry.Derived, error) {
			return p.e.evaluateGroup(ctx, nested, values)
		}
	}
	return in, nil
}

// resolveInputs reads every input socket: linked inputs take the upstream
// output converted to the socket's type, unlinked and disabled inputs
// their own default.
func (p *pass) resolveInputs(ctx context.Context, sn *graph.SnapshotNode) (map[string]cty.Value, error) {
	values := make(map[string]cty.Value, len(sn.Inputs))
	for _, so := range sn.Inputs {
		if so.Extension {
			continue
		}
		v := so.Default
		if so.Enabled && so.Link >= 0 {
			l := p.snap.Links[so.Link]
			upstream, err := p.store.GetOutput(ctx, l.FromNode)
			if err != nil {
				return nil, fmt.Errorf("input %s: %w", so.Identifier, err)
			}
			src, ok := upstream[l.FromSocket]
			if !ok || sockettype.IsNil(src) {
				src = typeDefault(l.FromType)
			}
			v, err = p.snap.Sockets.Convert(src, l.FromType, so.Type)
			if err != nil {
				return nil, fmt.Errorf("input %s: %w", so.Identifier, err)
			}
		}
		if sockettype.IsNil(v) {
			v = typeDefault(so.Type)
		}
		values[so.Identifier] = v
	}
	return values, nil
}

func typeDefault(st *sockettype.Type) cty.Value {
	if st == nil {
		return cty.NilVal
	}
	return st.Default()
}

// evaluateGroup runs a nested pass over a group's captured tree. values
// are keyed by interface input identifier; the result is keyed by
// interface output identifier. Outputs the tree does not drive keep their
// interface defaults.
func (e *Evaluator) evaluateGroup(ctx context.Context, snap *graph.Snapshot, values map[string]cty.Value) (registry.Derived, error) {
	p := e.newPass(ctx, snap, values, true)
	p.run(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failures, _ := p.outcome(ctx); len(failures) > 0 {
		f := failures[0]
		return nil, fmt.Errorf("group %q: %w: %s (%s): %w", snap.Name, ErrNodeFailed, f.Node, f.TypeID, f.Err)
	}

	out := make(registry.Derived, len(snap.Outputs))
	for _, o := range snap.Outputs {
		out[o.Identifier] = o.Default
		if sockettype.IsNil(o.Default) {
			out[o.Identifier] = typeDefault(o.Type)
		}
	}
	for _, sn := range snap.Nodes {
		if sn.Role != registry.RoleGroupOutput {
			continue
		}
		d, err := p.store.GetOutput(ctx, sn.Handle)
		if err != nil {
			return nil, err
		}
		for k, v := range d {
			if _, ok := out[k]; ok {
				out[k] = v
			}
		}
		break
	}
	return out, nil
}
