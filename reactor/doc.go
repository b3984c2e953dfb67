// Package reactor
//
// Single-threaded, readiness-driven dispatch loop. Each iteration
// reconciles dirty registry entries against the kernel multiplexer, waits
// (bounded) for readiness, handles coalesced control signals, delivers
// read/write/exception callbacks, services the legacy fallback-poll set,
// and runs due deferred work.
//
// All callbacks run synchronously on the loop's goroutine and must not
// block; the bounded kernel wait is the sole blocking point.
//
// License: Apache-2.0
package reactor
