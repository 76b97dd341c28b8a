// Package registry is the node type registry: the string-keyed table that
// maps a node type identifier ("ShaderNodeMath", "NodeReroute", ...) to the
// capability table implementing that type.
//
// # Why Registry Exists
//
// The graph engine never switches on concrete node kinds. Everything a node
// type does differently (how it initialises its parameters, which links it
// accepts, how it recomputes its derived state) is looked up here by type
// identifier and invoked through the Hooks table. This keeps the graph code
// independent of the many per-domain node kinds.
//
// # Sources of Node Types
//
//   - **Go modules** implement Module and call RegisterNodeType and
//     RegisterHooks during startup.
//   - **HCL catalogs** declare socket types and node types. A catalog node
//     type names its hooks in a `lifecycle` block; the names are bound to
//     hook sets registered by Go modules.
//
// During startup the registry is populated, then Validate performs a strict
// parity check between catalogs and Go code (unknown socket types, unbound
// hook names, clashing socket identifiers), and finally Seal makes it
// read-only for the rest of the process.
package registry
