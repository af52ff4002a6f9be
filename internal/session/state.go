// File: internal/session/state.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"fmt"
	"strings"

	"github.com/momentics/hioload-chat/api"
)

// State is the connection lifecycle state.
type State uint8

const (
	StateNew State = iota
	StateAwaitingHandshake
	StateHandshakeResponse
	StateRunning
	StateRunningAndWriting
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateHandshakeResponse:
		return "handshake_response"
	case StateRunning:
		return "running"
	case StateRunningAndWriting:
		return "running_and_writing"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// IsRunning reports whether the handshake has completed.
func (s State) IsRunning() bool {
	return s == StateRunning || s == StateRunningAndWriting
}

// Interest derives the poller interest set for s.
func (s State) Interest() api.Interest {
	switch s {
	case StateHandshakeResponse:
		return api.InterestWritable
	case StateRunningAndWriting:
		return api.InterestReadable | api.InterestWritable
	default:
		return api.InterestReadable
	}
}

// Event is a readiness event delivered to a handler.
type Event uint8

const (
	EventReadable Event = iota + 1
	EventWritable
)

func (e Event) String() string {
	switch e {
	case EventReadable:
		return "readable"
	case EventWritable:
		return "writable"
	default:
		return "unknown"
	}
}

// EventError reports an event the current state cannot logically produce.
// It is logged and answered with a rearm, never treated as fatal.
type EventError struct {
	ID    api.ConnectionID
	State State
	Event Event
}

func (e *EventError) Error() string {
	return fmt.Sprintf("connection %d: unexpected %s event in state %s", e.ID, e.Event, e.State)
}

// Variant selects the connection protocol.
type Variant uint8

const (
	VariantWebSocket Variant = iota
	VariantLine
)

func (v Variant) String() string {
	if v == VariantLine {
		return "line"
	}
	return "websocket"
}

// ParseVariant maps a config mode string to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "websocket", "ws":
		return VariantWebSocket, nil
	case "line":
		return VariantLine, nil
	default:
		return 0, fmt.Errorf("unknown connection mode %q: %w", s, api.ErrInvalidArgument)
	}
}
