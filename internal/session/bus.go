// File: internal/session/bus.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bus fans a message out to every registered connection except its origin.

package session

import (
	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/protocol"
)

// Bus delivers broadcasts over a Registry. It runs on the reactor goroutine.
type Bus struct {
	reg *Registry
}

// NewBus returns a bus over reg.
func NewBus(reg *Registry) *Bus {
	return &Bus{reg: reg}
}

// Deliver enqueues payload on every connection other than sender, in
// ascending id order. Connections that are closed or still handshaking skip
// the message. It returns the handles that accepted it and therefore need
// writable interest, and the handles whose output limit was exceeded.
func (b *Bus) Deliver(sender api.ConnectionID, op protocol.Opcode, payload []byte) (accepted, overflowed []*Handle) {
	for _, h := range b.reg.Snapshot() {
		if h.Conn.ID() == sender {
			continue
		}
		switch h.Conn.Enqueue(op, payload) {
		case EnqueueAccepted:
			accepted = append(accepted, h)
		case EnqueueOverflow:
			overflowed = append(overflowed, h)
		}
	}
	return accepted, overflowed
}
