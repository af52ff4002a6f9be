// File: internal/session/message.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Control messages posted by handlers to the reactor goroutine.

package session

import (
	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/protocol"
)

// Kind is the control message type.
type Kind uint8

const (
	MsgRearm Kind = iota + 1
	MsgClose
	MsgBroadcast
)

func (k Kind) String() string {
	switch k {
	case MsgRearm:
		return "rearm"
	case MsgClose:
		return "close"
	case MsgBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Close reasons used in logs and metrics.
const (
	ReasonPeerClose         = "peer_close"
	ReasonHangup            = "hangup"
	ReasonTransportError    = "transport_error"
	ReasonProtocolError     = "protocol_error"
	ReasonHandshakeRejected = "handshake_rejected"
	ReasonResourceExhausted = "resource_exhausted"
	ReasonRegisterFailed    = "register_failed"
	ReasonInternalError     = "internal_error"
	ReasonShutdown          = "shutdown"
)

// Message is one reactor control message. Payload of a broadcast is never
// mutated after posting.
type Message struct {
	Kind    Kind
	ID      api.ConnectionID
	Opcode  protocol.Opcode
	Payload []byte
	Reason  string
}

// Rearm builds a rearm request for id.
func Rearm(id api.ConnectionID) Message {
	return Message{Kind: MsgRearm, ID: id}
}

// Close builds a close request for id.
func Close(id api.ConnectionID, reason string) Message {
	return Message{Kind: MsgClose, ID: id, Reason: reason}
}

// Broadcast builds a fan-out request from sender.
func Broadcast(sender api.ConnectionID, op protocol.Opcode, payload []byte) Message {
	return Message{Kind: MsgBroadcast, ID: sender, Opcode: op, Payload: payload}
}

// Poster delivers messages to the reactor. It must not block.
type Poster interface {
	Post(Message) bool
}

// Observer receives per-connection counters. Implementations must be safe for
// concurrent use.
type Observer interface {
	FrameReceived(op protocol.Opcode)
	BytesIn(n int)
	BytesOut(n int)
	ProtocolError(reason string)
	MessageDropped(reason string)
}

type nopObserver struct{}

func (nopObserver) FrameReceived(protocol.Opcode) {}
func (nopObserver) BytesIn(int)                   {}
func (nopObserver) BytesOut(int)                  {}
func (nopObserver) ProtocolError(string)          {}
func (nopObserver) MessageDropped(string)         {}
