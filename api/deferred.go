// File: api/deferred.go
// Package api defines the deferred/timer collaborator contract.
// License: Apache-2.0

package api

import "time"

// Deferred is the timer collaborator consumed by the dispatch loop. The
// loop never inspects timer storage: it only asks how long it may sleep and
// triggers execution of whatever became due after waking.
type Deferred interface {
	// NextDelay returns the time until the next due item. ok is false when
	// nothing is pending; a zero or negative duration means work is due now.
	NextDelay() (d time.Duration, ok bool)

	// RunDue executes all items that are due at the time of the call.
	RunDue()
}
