// Package app wires the node engine into a runnable application. It owns the
// registry, the tree library, the metrics registry and the optional editor
// connection, and exposes the operations the command line drives:
//
//   - loading catalogs and documents into the library,
//   - evaluating tagged trees, wrapped trees before their users,
//   - saving and loading the library through the block store,
//   - serving: re-evaluating on every edit while the health check and
//     metrics endpoints are up.
//
// App is decoupled from any specific entrypoint; the cli package builds a
// Config from flags and calls into it.
package app
