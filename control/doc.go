// Package control
//
// Runtime control plane for the I/O core: configuration with hot reload,
// verbosity stepping, and loop metrics.
//
// Provides state handling primitives including:
//   - Snapshot config reads and atomic updates
//   - Runtime observers for hot-reload
//   - Counter telemetry fed by the dispatch loop
//
// License: Apache-2.0
package control
