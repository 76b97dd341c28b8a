package document

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/zclconf/go-cty/cty"
	"lukechampine.com/blake3"
)

// treeModel is a tree read out of the graph in document order. Both the HCL
// and the YAML encoders render it.
type treeModel struct {
	Name    string
	Kind    string
	Active  string
	Inputs  []interfaceModel
	Outputs []interfaceModel
	Nodes   []nodeModel
	Links   []linkBlock
}

type interfaceModel struct {
	Identifier string
	Name       string
	Type       string
	Default    cty.Value
	Min, Max   *float64
}

type nodeModel struct {
	Name     string
	Type     string
	Location [2]float64
	Width    float64
	Parent   string
	Group    string
	Params   map[string]cty.Value
	Inputs   []socketModel
	Outputs  []socketModel
}

type socketModel struct {
	Identifier string
	Name       string
	Type       string
	Default    cty.Value
	Hidden     bool
	Disabled   bool
}

func modelOf(tr *graph.Tree) treeModel {
	m := treeModel{Name: tr.Name(), Kind: tr.Kind()}
	m.Inputs = interfaceModels(tr.Interface(graph.Input))
	m.Outputs = interfaceModels(tr.Interface(graph.Output))

	names := map[graph.NodeHandle]string{}
	handles := tr.Nodes()
	for _, h := range handles {
		if info, ok := tr.Node(h); ok {
			names[h] = info.Name
		}
	}
	if active, ok := tr.Active(); ok {
		m.Active = names[active]
	}

	for _, h := range handles {
		info, ok := tr.Node(h)
		if !ok {
			continue
		}
		nm := nodeModel{
			Name:     info.Name,
			Type:     info.TypeID,
			Location: info.Location,
			Width:    info.Width,
			Params:   writableParams(info.Params),
			Inputs:   socketModels(tr.Sockets(h, graph.Input)),
			Outputs:  socketModels(tr.Sockets(h, graph.Output)),
		}
		if !info.Parent.IsZero() {
			nm.Parent = names[info.Parent]
		}
		if info.Group != nil {
			nm.Group = info.Group.Name()
		}
		m.Nodes = append(m.Nodes, nm)
	}

	for _, l := range tr.Links() {
		from, okf := tr.Socket(l.From)
		to, okt := tr.Socket(l.To)
		if !okf || !okt {
			continue
		}
		m.Links = append(m.Links, linkBlock{
			FromNode:   names[l.FromNode],
			FromSocket: from.Identifier,
			ToNode:     names[l.ToNode],
			ToSocket:   to.Identifier,
		})
	}
	return m
}

func interfaceModels(list []graph.InterfaceSocket) []interfaceModel {
	out := make([]interfaceModel, 0, len(list))
	for _, s := range list {
		out = append(out, interfaceModel{
			Identifier: s.Identifier,
			Name:       s.Name,
			Type:       s.Type.ID(),
			Default:    s.Default,
			Min:        s.Min,
			Max:        s.Max,
		})
	}
	return out
}

func socketModels(list []graph.SocketInfo) []socketModel {
	out := make([]socketModel, 0, len(list))
	for _, s := range list {
		if s.Extension {
			continue
		}
		out = append(out, socketModel{
			Identifier: s.Identifier,
			Name:       s.Name,
			Type:       s.TypeID,
			Default:    s.Default,
			Hidden:     s.Hidden,
			Disabled:   !s.Enabled,
		})
	}
	return out
}

// writable reports whether a value can be written to a document. Shader
// closures only exist at evaluation time.
func writable(v cty.Value) bool {
	return present(v) && !v.Type().IsCapsuleType()
}

func writableParams(p map[string]cty.Value) map[string]cty.Value {
	out := make(map[string]cty.Value, len(p))
	for k, v := range p {
		if writable(v) {
			out[k] = v
		}
	}
	return out
}

// Encode renders trees as an HCL document. The output is deterministic for
// a given tree state.
func Encode(trees ...*graph.Tree) []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()
	for i, tr := range trees {
		if i > 0 {
			root.AppendNewline()
		}
		writeTree(root, modelOf(tr))
	}
	return hclwrite.Format(f.Bytes())
}

// SaveFile encodes trees and writes them to path.
func SaveFile(path string, trees ...*graph.Tree) error {
	if err := os.WriteFile(path, Encode(trees...), 0o644); err != nil {
		return fmt.Errorf("failed to write document %s: %w", path, err)
	}
	return nil
}

// Fingerprint returns the hex BLAKE3 digest of the trees' HCL encoding.
func Fingerprint(trees ...*graph.Tree) string {
	sum := blake3.Sum256(Encode(trees...))
	return hex.EncodeToString(sum[:])
}

func writeTree(root *hclwrite.Body, m treeModel) {
	body := root.AppendNewBlock("tree", []string{m.Name}).Body()
	body.SetAttributeValue("kind", cty.StringVal(m.Kind))
	if m.Active != "" {
		body.SetAttributeValue("active", cty.StringVal(m.Active))
	}

	for _, group := range []struct {
		block string
		list  []interfaceModel
	}{{"interface_input", m.Inputs}, {"interface_output", m.Outputs}} {
		for _, s := range group.list {
			body.AppendNewline()
			b := body.AppendNewBlock(group.block, []string{s.Identifier}).Body()
			b.SetAttributeValue("name", cty.StringVal(s.Name))
			b.SetAttributeValue("type", cty.StringVal(s.Type))
			if writable(s.Default) {
				b.SetAttributeValue("default", s.Default)
			}
			if s.Min != nil {
				b.SetAttributeValue("min", cty.NumberFloatVal(*s.Min))
			}
			if s.Max != nil {
				b.SetAttributeValue("max", cty.NumberFloatVal(*s.Max))
			}
		}
	}

	for _, n := range m.Nodes {
		body.AppendNewline()
		b := body.AppendNewBlock("node", []string{n.Name}).Body()
		b.SetAttributeValue("type", cty.StringVal(n.Type))
		b.SetAttributeValue("location", cty.TupleVal([]cty.Value{
			cty.NumberFloatVal(n.Location[0]), cty.NumberFloatVal(n.Location[1]),
		}))
		b.SetAttributeValue("width", cty.NumberFloatVal(n.Width))
		if n.Parent != "" {
			b.SetAttributeValue("parent", cty.StringVal(n.Parent))
		}
		if n.Group != "" {
			b.SetAttributeValue("group", cty.StringVal(n.Group))
		}
		if len(n.Params) > 0 {
			b.SetAttributeValue("params", cty.ObjectVal(n.Params))
		}
		writeSockets(b, "input", n.Inputs)
		writeSockets(b, "output", n.Outputs)
	}

	for _, l := range m.Links {
		body.AppendNewline()
		b := body.AppendNewBlock("link", nil).Body()
		b.SetAttributeValue("from_node", cty.StringVal(l.FromNode))
		b.SetAttributeValue("from_socket", cty.StringVal(l.FromSocket))
		b.SetAttributeValue("to_node", cty.StringVal(l.ToNode))
		b.SetAttributeValue("to_socket", cty.StringVal(l.ToSocket))
	}
}

func writeSockets(body *hclwrite.Body, block string, sockets []socketModel) {
	for _, s := range sockets {
		b := body.AppendNewBlock(block, []string{s.Identifier}).Body()
		if s.Name != "" && s.Name != s.Identifier {
			b.SetAttributeValue("name", cty.StringVal(s.Name))
		}
		b.SetAttributeValue("type", cty.StringVal(s.Type))
		if writable(s.Default) {
			b.SetAttributeValue("default", s.Default)
		}
		if s.Hidden {
			b.SetAttributeValue("hidden", cty.True)
		}
		if s.Disabled {
			b.SetAttributeValue("disabled", cty.True)
		}
	}
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys(m map[string]cty.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
