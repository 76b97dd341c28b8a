/*
Package nodeid provides a structured representation for addressing node
outputs from the command line, based on the canonical format
`tree/node[/socket]`.

Tree and node are display names, socket is an output socket identifier.
Names may contain spaces and dots, as in `Material/Math.001/Value`, but not
slashes. Leaving the socket out addresses every output of the node.
*/
package nodeid
