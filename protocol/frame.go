// File: protocol/frame.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame value type and decode errors.

package protocol

import (
	"errors"
	"fmt"
)

// Opcode is the 4-bit frame opcode.
type Opcode byte

// IsControl reports whether op is a control opcode (Close, Ping, Pong).
func (op Opcode) IsControl() bool { return op&0x8 != 0 }

// IsData reports whether op carries an application message.
func (op Opcode) IsData() bool { return op == OpcodeText || op == OpcodeBinary }

func (op Opcode) String() string {
	switch op {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("reserved(0x%x)", byte(op))
	}
}

// Frame is one decoded or to-be-encoded WebSocket frame. Payload is owned by
// the frame.
type Frame struct {
	Opcode  Opcode
	Fin     bool
	Payload []byte
}

// NewFrame returns a final frame with the given opcode and payload.
func NewFrame(op Opcode, payload []byte) Frame {
	return Frame{Opcode: op, Fin: true, Payload: payload}
}

// DecodeErrorKind classifies decode failures.
type DecodeErrorKind uint8

const (
	// KindIncomplete means more bytes are needed.
	KindIncomplete DecodeErrorKind = iota
	// KindProtocol means the peer violated the framing rules.
	KindProtocol
	// KindIo means the underlying reader failed.
	KindIo
)

func (k DecodeErrorKind) String() string {
	switch k {
	case KindIncomplete:
		return "incomplete"
	case KindProtocol:
		return "protocol"
	default:
		return "io"
	}
}

var (
	// ErrIncomplete matches any DecodeError of kind KindIncomplete.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrProtocol matches any DecodeError of kind KindProtocol.
	ErrProtocol = errors.New("websocket protocol violation")

	ErrReservedOpcode = errors.New("reserved opcode")
	ErrReservedBits   = errors.New("reserved bits set")
	ErrFragmented     = errors.New("fragmented messages are not supported")
	ErrControlTooLong = errors.New("control frame payload exceeds 125 bytes")
	ErrFrameTooLarge  = errors.New("frame payload exceeds maximum allowed size")
	ErrInvalidLength  = errors.New("invalid 64-bit payload length")
)

// DecodeError is returned by Decode and ReadFrame.
type DecodeError struct {
	Kind DecodeErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode: " + e.Kind.String()
	}
	return "decode: " + e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrIncomplete:
		return e.Kind == KindIncomplete
	case ErrProtocol:
		return e.Kind == KindProtocol
	}
	return false
}

var errIncomplete = &DecodeError{Kind: KindIncomplete}

func protocolError(err error) error {
	return &DecodeError{Kind: KindProtocol, Err: err}
}
