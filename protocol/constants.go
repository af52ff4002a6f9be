// File: protocol/constants.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RFC6455 wire constants.

package protocol

// Opcode values.
const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

// Header bits.
const (
	FinBit  = 0x80
	RsvBits = 0x70
	MaskBit = 0x80

	opcodeMask = 0x0F
	lenMask    = 0x7F
)

// Length codes of the second header byte.
const (
	len16Code = 126
	len64Code = 127
)

// Close status codes.
const (
	CloseNormalClosure    uint16 = 1000
	CloseGoingAway        uint16 = 1001
	CloseProtocolError    uint16 = 1002
	CloseInvalidPayload   uint16 = 1007
	CloseMessageTooBig    uint16 = 1009
	CloseInternalErr      uint16 = 1011
	closeNoStatusReceived uint16 = 1005
)

const (
	// MaxControlPayloadLen bounds Close, Ping and Pong payloads.
	MaxControlPayloadLen = 125
	// MaxFramePayload is the default payload limit for a single frame.
	MaxFramePayload = 1 << 20
	// MaxFramePayloadLimit is the largest limit a caller may configure.
	MaxFramePayloadLimit = 1 << 30
	// MaxFrameHeaderLen is the largest possible header: 2 + 8 length + 4 mask.
	MaxFrameHeaderLen = 14
)
