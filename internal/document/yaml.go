package document

import (
	"fmt"

	"github.com/vk/nodeweave/internal/graph"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	Trees []yamlTree `yaml:"trees"`
}

type yamlTree struct {
	Name      string        `yaml:"name"`
	Kind      string        `yaml:"kind"`
	Active    string        `yaml:"active,omitempty"`
	Interface yamlInterface `yaml:"interface"`
	Nodes     []yamlNode    `yaml:"nodes"`
	Links     []yamlLink    `yaml:"links,omitempty"`
}

type yamlInterface struct {
	Inputs  []yamlSocket `yaml:"inputs,omitempty"`
	Outputs []yamlSocket `yaml:"outputs,omitempty"`
}

type yamlNode struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Location [2]float64     `yaml:"location,flow"`
	Width    float64        `yaml:"width"`
	Parent   string         `yaml:"parent,omitempty"`
	Group    string         `yaml:"group,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
	Inputs   []yamlSocket   `yaml:"inputs,omitempty"`
	Outputs  []yamlSocket   `yaml:"outputs,omitempty"`
}

type yamlSocket struct {
	Identifier string   `yaml:"identifier"`
	Name       string   `yaml:"name,omitempty"`
	Type       string   `yaml:"type"`
	Default    any      `yaml:"default,omitempty"`
	Min        *float64 `yaml:"min,omitempty"`
	Max        *float64 `yaml:"max,omitempty"`
	Hidden     bool     `yaml:"hidden,omitempty"`
	Disabled   bool     `yaml:"disabled,omitempty"`
}

type yamlLink struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// ExportYAML renders trees as YAML. The output is for reading and diffing;
// Decode only accepts HCL.
func ExportYAML(trees ...*graph.Tree) ([]byte, error) {
	doc := yamlDocument{Trees: make([]yamlTree, 0, len(trees))}
	for _, tr := range trees {
		doc.Trees = append(doc.Trees, yamlTreeOf(modelOf(tr)))
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal yaml: %w", err)
	}
	return out, nil
}

func yamlTreeOf(m treeModel) yamlTree {
	yt := yamlTree{Name: m.Name, Kind: m.Kind, Active: m.Active}
	for _, s := range m.Inputs {
		yt.Interface.Inputs = append(yt.Interface.Inputs, yamlInterfaceSocket(s))
	}
	for _, s := range m.Outputs {
		yt.Interface.Outputs = append(yt.Interface.Outputs, yamlInterfaceSocket(s))
	}
	for _, n := range m.Nodes {
		yn := yamlNode{
			Name:     n.Name,
			Type:     n.Type,
			Location: n.Location,
			Width:    n.Width,
			Parent:   n.Parent,
			Group:    n.Group,
		}
		if len(n.Params) > 0 {
			yn.Params = make(map[string]any, len(n.Params))
			for _, k := range sortedKeys(n.Params) {
				yn.Params[k] = plain(n.Params[k])
			}
		}
		yn.Inputs = yamlSockets(n.Inputs)
		yn.Outputs = yamlSockets(n.Outputs)
		yt.Nodes = append(yt.Nodes, yn)
	}
	for _, l := range m.Links {
		yt.Links = append(yt.Links, yamlLink{
			From: l.FromNode + "." + l.FromSocket,
			To:   l.ToNode + "." + l.ToSocket,
		})
	}
	return yt
}

func yamlInterfaceSocket(s interfaceModel) yamlSocket {
	return yamlSocket{
		Identifier: s.Identifier,
		Name:       s.Name,
		Type:       s.Type,
		Default:    plain(s.Default),
		Min:        s.Min,
		Max:        s.Max,
	}
}

func yamlSockets(list []socketModel) []yamlSocket {
	out := make([]yamlSocket, 0, len(list))
	for _, s := range list {
		ys := yamlSocket{
			Identifier: s.Identifier,
			Type:       s.Type,
			Default:    plain(s.Default),
			Hidden:     s.Hidden,
			Disabled:   s.Disabled,
		}
		if s.Name != s.Identifier {
			ys.Name = s.Name
		}
		out = append(out, ys)
	}
	return out
}

// plain converts a cty value into the Go value yaml.v3 marshals naturally.
// Values that cannot be written read as nil.
func plain(v cty.Value) any {
	if !writable(v) {
		return nil
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.Number):
		f, _ := v.AsBigFloat().Float64()
		return f
	case ty.Equals(cty.String):
		return v.AsString()
	case ty.Equals(cty.Bool):
		return v.True()
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, e := it.Element()
			out = append(out, plain(e))
		}
		return out
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, e := it.Element()
			out[k.AsString()] = plain(e)
		}
		return out
	}
	return nil
}
