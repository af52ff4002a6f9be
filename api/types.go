// File: api/types.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared API-level type declarations and constants.

package api

import "strings"

// ConnectionID identifies an accepted socket for the lifetime of the process.
// IDs are allocated monotonically starting at 1 and never reused.
type ConnectionID uint64

// ListenerID is the reserved identifier of the listening socket.
const ListenerID ConnectionID = 0

// Interest is the set of readiness conditions a registration waits for.
type Interest uint8

const (
	InterestReadable Interest = 1 << iota
	InterestWritable
)

// InterestNone registers for nothing but hangup notification.
const InterestNone Interest = 0

func (i Interest) String() string {
	var parts []string
	if i&InterestReadable != 0 {
		parts = append(parts, "readable")
	}
	if i&InterestWritable != 0 {
		parts = append(parts, "writable")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Readiness is the set of conditions reported by one notification.
type Readiness uint8

const (
	Readable Readiness = 1 << iota
	Writable
	Hangup
)

func (r Readiness) String() string {
	var parts []string
	if r&Readable != 0 {
		parts = append(parts, "readable")
	}
	if r&Writable != 0 {
		parts = append(parts, "writable")
	}
	if r&Hangup != 0 {
		parts = append(parts, "hangup")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ReadyEvent is a single readiness notification returned by Poller.Wait.
type ReadyEvent struct {
	ID        ConnectionID
	Readiness Readiness
}
