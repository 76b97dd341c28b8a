package nodeid

import (
	"fmt"
	"strings"
)

// Address points at a node, or one output socket of it, in a named tree.
type Address struct {
	Tree   string
	Node   string
	Socket string // empty addresses every output
}

// Parse creates an Address from its canonical string representation.
func Parse(raw string) (*Address, error) {
	if raw == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}
	segments := strings.Split(raw, "/")
	if len(segments) < 2 || len(segments) > 3 {
		return nil, fmt.Errorf("invalid address %q: want tree/node or tree/node/socket", raw)
	}
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("address %q contains an empty segment", raw)
		}
		if s == "." || s == ".." {
			return nil, fmt.Errorf("invalid segment name %q in address %q", s, raw)
		}
	}
	addr := &Address{Tree: segments[0], Node: segments[1]}
	if len(segments) == 3 {
		addr.Socket = segments[2]
	}
	return addr, nil
}

// String serializes the Address into its canonical form.
func (a *Address) String() string {
	if a == nil {
		return ""
	}
	if a.Socket == "" {
		return a.Tree + "/" + a.Node
	}
	return a.Tree + "/" + a.Node + "/" + a.Socket
}

// Equal reports whether two addresses point at the same place.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	return *a == *other
}
