// File: api/multiplexer.go
// Package api defines the kernel multiplexer contract.
// License: Apache-2.0

package api

// Event is one readiness notification reported by a Multiplexer.
type Event struct {
	FD    int  // file descriptor the notification refers to
	Ready Mask // readiness classes that fired
}

// Multiplexer abstracts the kernel readiness mechanism (epoll on Linux).
//
// Implementations own the authoritative fd to registered-mask table: Sync is
// a declarative call, and the implementation decides whether it translates
// to an add, a modification, a removal, or nothing at all.
type Multiplexer interface {
	// Sync makes the kernel registration for fd match mask, issuing at most
	// one kernel call. A zero mask unregisters the descriptor. Errors are
	// unrecoverable: once a registration call fails, the kernel table can no
	// longer be trusted to match the caller's intent.
	Sync(fd int, mask Mask) error

	// Wait blocks up to timeoutMs milliseconds and fills events with ready
	// descriptors, returning how many were written. A timeout of zero
	// returns immediately, a negative timeout blocks indefinitely. Zero
	// results is not an error.
	Wait(events []Event, timeoutMs int) (int, error)

	// Close releases the kernel handle and forgets all registrations.
	Close() error
}
