package document

import (
	"github.com/zclconf/go-cty/cty"
)

// fileSchema is the gohcl decoding target of a document.
type fileSchema struct {
	Trees []*treeBlock `hcl:"tree,block"`
}

type treeBlock struct {
	Name    string            `hcl:"name,label"`
	Kind    string            `hcl:"kind"`
	Active  string            `hcl:"active,optional"`
	Inputs  []*interfaceBlock `hcl:"interface_input,block"`
	Outputs []*interfaceBlock `hcl:"interface_output,block"`
	Nodes   []*nodeBlock      `hcl:"node,block"`
	Links   []*linkBlock      `hcl:"link,block"`
}

type interfaceBlock struct {
	Identifier string    `hcl:"identifier,label"`
	Name       string    `hcl:"name,optional"`
	Type       string    `hcl:"type"`
	Default    cty.Value `hcl:"default,optional"`
	Min        *float64  `hcl:"min,optional"`
	Max        *float64  `hcl:"max,optional"`
}

type nodeBlock struct {
	Name     string         `hcl:"name,label"`
	Type     string         `hcl:"type"`
	Location []float64      `hcl:"location,optional"`
	Width    *float64       `hcl:"width,optional"`
	Parent   string         `hcl:"parent,optional"`
	Group    string         `hcl:"group,optional"`
	Params   cty.Value      `hcl:"params,optional"`
	Inputs   []*socketBlock `hcl:"input,block"`
	Outputs  []*socketBlock `hcl:"output,block"`
}

type socketBlock struct {
	Identifier string    `hcl:"identifier,label"`
	Name       string    `hcl:"name,optional"`
	Type       string    `hcl:"type"`
	Default    cty.Value `hcl:"default,optional"`
	Hidden     bool      `hcl:"hidden,optional"`
	Disabled   bool      `hcl:"disabled,optional"`
}

type linkBlock struct {
	FromNode   string `hcl:"from_node"`
	FromSocket string `hcl:"from_socket"`
	ToNode     string `hcl:"to_node"`
	ToSocket   string `hcl:"to_socket"`
}
