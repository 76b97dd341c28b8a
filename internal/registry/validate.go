package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/sockettype"
)

// Validate performs a strict parity check between catalogs and Go code:
// every socket template must name a registered socket type with a default
// that fits it, socket identifiers must be unique per direction and every
// catalog lifecycle name must resolve to a hook set providing that event.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, nt := range r.NodeTypes() {
		errs = append(errs, r.validateTemplates(nt, "input", nt.Inputs)...)
		errs = append(errs, r.validateTemplates(nt, "output", nt.Outputs)...)
		if nt.Role == RoleReroute && (len(nt.Inputs) != 1 || len(nt.Outputs) != 1) {
			errs = append(errs, fmt.Sprintf("node type '%s': reroute nodes need exactly one input and one output", nt.ID))
		}
	}

	r.mu.RLock()
	bindings := append([]binding(nil), r.bindings...)
	r.mu.RUnlock()

	for _, b := range bindings {
		set, ok := r.HookSet(b.hookSet)
		if !ok {
			errs = append(errs, fmt.Sprintf("node type '%s' (%s): lifecycle %s refers to unknown hook set '%s'", b.nodeType, b.source, b.event, b.hookSet))
			continue
		}
		if !set.provides(b.event) {
			errs = append(errs, fmt.Sprintf("node type '%s' (%s): hook set '%s' does not implement %s", b.nodeType, b.source, b.hookSet, b.event))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validation passed.", "node_types", len(r.NodeTypes()), "socket_types", len(r.Sockets.Types()))
	return nil
}

func (r *Registry) validateTemplates(nt *NodeType, dir string, templates []SocketTemplate) []string {
	var errs []string
	seen := make(map[string]struct{}, len(templates))
	for _, tmpl := range templates {
		id := tmpl.ID()
		if id == "" {
			errs = append(errs, fmt.Sprintf("node type '%s': %s socket without identifier", nt.ID, dir))
			continue
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, fmt.Sprintf("node type '%s': duplicate %s socket identifier '%s'", nt.ID, dir, id))
		}
		seen[id] = struct{}{}

		st, ok := r.Sockets.Lookup(tmpl.Type)
		if !ok {
			errs = append(errs, fmt.Sprintf("node type '%s', %s '%s': unknown socket type '%s'", nt.ID, dir, id, tmpl.Type))
			continue
		}
		if _, err := sockettype.Coerce(st.Kind(), tmpl.Default); err != nil {
			errs = append(errs, fmt.Sprintf("node type '%s', %s '%s': %v", nt.ID, dir, id, err))
		}
		if tmpl.Min != nil && tmpl.Max != nil && *tmpl.Min > *tmpl.Max {
			errs = append(errs, fmt.Sprintf("node type '%s', %s '%s': min %g exceeds max %g", nt.ID, dir, id, *tmpl.Min, *tmpl.Max))
		}
	}
	return errs
}

func (h Hooks) provides(event string) bool {
	switch event {
	case "init":
		return h.Init != nil
	case "free":
		return h.Free != nil
	case "copy":
		return h.Copy != nil
	case "validate_link":
		return h.ValidateLink != nil
	case "on_update":
		return h.Update != nil
	case "describe":
		return h.Describe != nil
	}
	return false
}
