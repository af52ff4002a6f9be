// File: api/poll.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Readiness poller contract: edge-triggered, one-shot registrations driven
// by a single reactor goroutine.

package api

import "time"

// Poller multiplexes readiness notifications for many descriptors.
//
// Every registration is one-shot: after a notification for an ID has been
// returned by Wait, no further notification for that ID is produced until
// Rearm is called. Register, Rearm and Deregister must only be called from the
// goroutine that calls Wait; Wake is safe from any goroutine.
type Poller interface {
	// Register adds fd with the given identifier and interest set.
	Register(fd int, id ConnectionID, interest Interest) error
	// Rearm renews a consumed registration with a (possibly new) interest set.
	Rearm(fd int, id ConnectionID, interest Interest) error
	// Deregister removes fd from the interest list.
	Deregister(fd int) error
	// Wait blocks until at least one event is ready, Wake is called or the
	// timeout expires. A negative timeout blocks indefinitely.
	Wait(events []ReadyEvent, timeout time.Duration) (int, error)
	// Wake interrupts a blocked Wait.
	Wake() error
	// Close releases the poller.
	Close() error
}
