package graph

import "errors"

var (
	// ErrUnknownNodeType is returned by AddNode for unregistered type identifiers.
	ErrUnknownNodeType = errors.New("unknown node type")
	// ErrUnknownSocketType is returned when a socket or interface socket names an unregistered type.
	ErrUnknownSocketType = errors.New("unknown socket type")
	// ErrIncompatibleTypes is returned when the socket types of a link cannot be converted.
	ErrIncompatibleTypes = errors.New("incompatible socket types")
	// ErrCrossTreeEndpoint is returned when a handle belongs to another tree.
	ErrCrossTreeEndpoint = errors.New("endpoint belongs to another tree")
	// ErrCycleDetected is returned when a link or group nesting would close a cycle.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrStaleHandle is returned when a handle refers to a removed element.
	ErrStaleHandle = errors.New("stale handle")
	// ErrPollFailed is returned when a node type may not be added to a tree of this kind.
	ErrPollFailed = errors.New("node type not allowed in this tree")
	// ErrInputOccupied is returned when an input already has a link and replacing it was not allowed.
	ErrInputOccupied = errors.New("input socket already linked")
	// ErrLinkRejected is returned when a node's ValidateLink hook vetoes a link.
	ErrLinkRejected = errors.New("link rejected by node")
	// ErrDirection is returned when both ends of a link have the same direction.
	ErrDirection = errors.New("link endpoints must be one output and one input")
	// ErrOutOfRange is returned for positions outside a socket list and for
	// non-positive node widths.
	ErrOutOfRange = errors.New("index out of range")
	// ErrNameTaken is returned when renaming a node to a name already in use.
	ErrNameTaken = errors.New("node name already in use")
	// ErrIdentifierTaken is returned when a persisted interface identifier is
	// already used in the same direction.
	ErrIdentifierTaken = errors.New("interface identifier already in use")
	// ErrInvalidParent is returned when a parent is not a frame or would contain itself.
	ErrInvalidParent = errors.New("invalid parent")
	// ErrNotGroup is returned when a group tree is assigned to a node that is not a group node.
	ErrNotGroup = errors.New("node is not a group node")
)

// reasonOf maps a link error to a short label used in events and metrics.
func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrCrossTreeEndpoint):
		return "cross_tree"
	case errors.Is(err, ErrStaleHandle):
		return "stale"
	case errors.Is(err, ErrDirection):
		return "direction"
	case errors.Is(err, ErrCycleDetected):
		return "cycle"
	case errors.Is(err, ErrIncompatibleTypes):
		return "incompatible"
	case errors.Is(err, ErrLinkRejected):
		return "rejected"
	case errors.Is(err, ErrInputOccupied):
		return "occupied"
	default:
		return "other"
	}
}
