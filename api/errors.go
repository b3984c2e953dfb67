// File: api/errors.go
// Package api defines common error values used across the module.
// License: Apache-2.0

package api

import "fmt"

// Common errors used across the module.
var (
	// ErrWouldBlock is returned by a Transport when the operation cannot
	// make progress without waiting. It is never fatal.
	ErrWouldBlock = fmt.Errorf("operation would block")

	// ErrWantRead is returned by a Transport write that needs inbound data
	// before it can complete. The dispatch loop reacts by arming read
	// interest on the connection.
	ErrWantRead = fmt.Errorf("write requires readability")

	// ErrConnClosed is returned when an operation targets a connection that
	// has already been closed.
	ErrConnClosed = fmt.Errorf("connection is closed")

	// ErrKeyExists is returned when a registry key is inserted twice.
	ErrKeyExists = fmt.Errorf("registry key already exists")

	// ErrKeyNotFound is returned when a registry key does not resolve.
	ErrKeyNotFound = fmt.Errorf("registry key not found")

	// ErrReadConflict is returned when a connection configures both the
	// default and the direct read callback; exactly one may be active.
	ErrReadConflict = fmt.Errorf("conflicting read callbacks")
)
