package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/fsutil"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// catalogFile decodes all top-level blocks a catalog may contain.
type catalogFile struct {
	SocketTypes []*catalogSocketType `hcl:"socket_type,block"`
	NodeTypes   []*catalogNodeType   `hcl:"node_type,block"`
	Remain      hcl.Body             `hcl:",remain"`
}

type catalogSocketType struct {
	ID      string    `hcl:"id,label"`
	Kind    string    `hcl:"kind"`
	Default cty.Value `hcl:"default,optional"`
}

type catalogNodeType struct {
	ID          string            `hcl:"id,label"`
	Label       string            `hcl:"label,optional"`
	Description string            `hcl:"description,optional"`
	TreeKinds   []string          `hcl:"tree_kinds,optional"`
	Inputs      []*catalogSocket  `hcl:"input,block"`
	Outputs     []*catalogSocket  `hcl:"output,block"`
	Lifecycle   *catalogLifecycle `hcl:"lifecycle,block"`
}

type catalogSocket struct {
	Identifier string    `hcl:"identifier,label"`
	Name       string    `hcl:"name,optional"`
	Type       string    `hcl:"type"`
	Default    cty.Value `hcl:"default,optional"`
	Min        *float64  `hcl:"min,optional"`
	Max        *float64  `hcl:"max,optional"`
	Hidden     bool      `hcl:"hidden,optional"`
}

type catalogLifecycle struct {
	Init         string `hcl:"init,optional"`
	Free         string `hcl:"free,optional"`
	Copy         string `hcl:"copy,optional"`
	ValidateLink string `hcl:"validate_link,optional"`
	OnUpdate     string `hcl:"on_update,optional"`
	Describe     string `hcl:"describe,optional"`
}

// binding is a catalog reference from a lifecycle event to a named hook set.
type binding struct {
	nodeType string
	event    string
	hookSet  string
	source   string
}

// LoadCatalogs loads every .hcl catalog below root. A missing root is not an error.
func (r *Registry) LoadCatalogs(ctx context.Context, root string) error {
	logger := ctxlog.FromContext(ctx)
	if root == "" {
		return nil
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			logger.Debug("Catalog path does not exist, skipping.", "path", root)
			return nil
		}
		return fmt.Errorf("error accessing catalog path %s: %w", root, err)
	}

	files, err := fsutil.FindFilesByExtension(root, ".hcl")
	if err != nil {
		return fmt.Errorf("failed to search catalog path %s: %w", root, err)
	}
	if len(files) == 0 {
		logger.Warn("No .hcl catalog files found in path", "path", root)
		return nil
	}

	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read catalog %s: %w", file, err)
		}
		if err := r.LoadCatalog(ctx, file, src); err != nil {
			return err
		}
	}
	logger.Info("Catalogs loaded.", "files", len(files), "node_types", len(r.NodeTypes()))
	return nil
}

// LoadCatalog parses one catalog document and registers its socket types
// and node types. Lifecycle names are bound to registered hook sets; names
// that do not resolve are reported by Validate.
func (r *Registry) LoadCatalog(ctx context.Context, filename string, src []byte) error {
	logger := ctxlog.FromContext(ctx).With("catalog", filename)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse catalog %s: %w", filename, diags)
	}

	var root catalogFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode catalog %s: %w", filename, diags)
	}

	for _, st := range root.SocketTypes {
		kind, err := sockettype.ParseKind(st.Kind)
		if err != nil {
			return fmt.Errorf("%s: socket_type %q: %w", filename, st.ID, err)
		}
		if _, err := r.Sockets.Register(st.ID, kind, st.Default); err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
		logger.Debug("Registered catalog socket type.", "id", st.ID, "kind", kind.String())
	}

	for _, cnt := range root.NodeTypes {
		nt := &NodeType{
			ID:          cnt.ID,
			Label:       cnt.Label,
			Description: cnt.Description,
			TreeKinds:   cnt.TreeKinds,
			Inputs:      templatesFromCatalog(cnt.Inputs),
			Outputs:     templatesFromCatalog(cnt.Outputs),
			Source:      filename,
		}
		if cnt.Lifecycle != nil {
			nt.Hooks = r.bindLifecycle(nt.ID, filename, cnt.Lifecycle)
		}
		if err := r.RegisterNodeType(nt); err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
		logger.Debug("Registered catalog node type.", "id", nt.ID, "inputs", len(nt.Inputs), "outputs", len(nt.Outputs))
	}
	return nil
}

func templatesFromCatalog(sockets []*catalogSocket) []SocketTemplate {
	out := make([]SocketTemplate, 0, len(sockets))
	for _, s := range sockets {
		name := s.Name
		if name == "" {
			name = s.Identifier
		}
		out = append(out, SocketTemplate{
			Identifier: s.Identifier,
			Name:       name,
			Type:       s.Type,
			Default:    s.Default,
			Min:        s.Min,
			Max:        s.Max,
			Hidden:     s.Hidden,
		})
	}
	return out
}

// bindLifecycle resolves each lifecycle event against the named hook sets.
func (r *Registry) bindLifecycle(nodeType, source string, lc *catalogLifecycle) Hooks {
	var h Hooks
	events := []struct {
		event string
		name  string
		apply func(Hooks)
	}{
		{"init", lc.Init, func(set Hooks) { h.Init = set.Init }},
		{"free", lc.Free, func(set Hooks) { h.Free = set.Free }},
		{"copy", lc.Copy, func(set Hooks) { h.Copy = set.Copy }},
		{"validate_link", lc.ValidateLink, func(set Hooks) { h.ValidateLink = set.ValidateLink }},
		{"on_update", lc.OnUpdate, func(set Hooks) { h.Update = set.Update }},
		{"describe", lc.Describe, func(set Hooks) { h.Describe = set.Describe }},
	}

	for _, ev := range events {
		if ev.name == "" {
			continue
		}
		r.mu.Lock()
		r.bindings = append(r.bindings, binding{nodeType: nodeType, event: ev.event, hookSet: ev.name, source: source})
		r.mu.Unlock()
		if set, ok := r.HookSet(ev.name); ok {
			ev.apply(set)
		}
	}
	return h
}
