// File: protocol/frame_codec.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
// Package protocol implements the frame codec with frame size enforcement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Decode works on a byte slice and reports ErrIncomplete instead of blocking,
// so the caller can keep partial frames in its inbound queue across events.
// Server frames are never masked.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/momentics/hioload-chat/api"
)

// Decode parses one frame from the start of raw. It returns the frame and the
// number of bytes consumed. If raw holds only part of a frame it returns an
// error matching ErrIncomplete and consumes nothing. maxPayload <= 0 selects
// MaxFramePayload.
func Decode(raw []byte, maxPayload int64) (Frame, int, error) {
	maxPayload = payloadLimit(maxPayload)
	if len(raw) < 2 {
		return Frame{}, 0, errIncomplete
	}
	b0, b1 := raw[0], raw[1]
	f := Frame{
		Fin:    b0&FinBit != 0,
		Opcode: Opcode(b0 & opcodeMask),
	}
	if err := checkHeader(b0, f); err != nil {
		return Frame{}, 0, err
	}

	masked := b1&MaskBit != 0
	length := uint64(b1 & lenMask)
	offset := 2

	switch length {
	case len16Code:
		if len(raw) < offset+2 {
			return Frame{}, 0, errIncomplete
		}
		length = uint64(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
	case len64Code:
		if len(raw) < offset+8 {
			return Frame{}, 0, errIncomplete
		}
		length = binary.BigEndian.Uint64(raw[offset:])
		offset += 8
	}

	if err := checkLength(f.Opcode, length, maxPayload); err != nil {
		return Frame{}, 0, err
	}

	var maskKey [4]byte
	if masked {
		if len(raw) < offset+4 {
			return Frame{}, 0, errIncomplete
		}
		copy(maskKey[:], raw[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if len(raw) < total {
		return Frame{}, 0, errIncomplete
	}

	f.Payload = make([]byte, length)
	copy(f.Payload, raw[offset:total])
	if masked {
		unmaskInPlace(f.Payload, maskKey)
	}
	return f, total, nil
}

// ReadFrame decodes one frame from r. A reader that reports api.ErrWouldBlock
// yields an ErrIncomplete error; any other read failure is a KindIo error.
func ReadFrame(r io.Reader, maxPayload int64) (Frame, error) {
	maxPayload = payloadLimit(maxPayload)
	var hdr [MaxFrameHeaderLen]byte
	if err := readFull(r, hdr[:2]); err != nil {
		return Frame{}, err
	}
	f := Frame{Fin: hdr[0]&FinBit != 0, Opcode: Opcode(hdr[0] & opcodeMask)}
	if err := checkHeader(hdr[0], f); err != nil {
		return Frame{}, err
	}

	extra := 0
	switch hdr[1] & lenMask {
	case len16Code:
		extra = 2
	case len64Code:
		extra = 8
	}
	if hdr[1]&MaskBit != 0 {
		extra += 4
	}
	if err := readFull(r, hdr[2:2+extra]); err != nil {
		return Frame{}, err
	}

	hdrLen := 2 + extra
	length := payloadLen(hdr[:hdrLen])
	if err := checkLength(f.Opcode, length, maxPayload); err != nil {
		return Frame{}, err
	}
	buf := make([]byte, hdrLen+int(length))
	copy(buf, hdr[:hdrLen])
	if err := readFull(r, buf[hdrLen:]); err != nil {
		return Frame{}, err
	}
	f, _, err := Decode(buf, maxPayload)
	return f, err
}

// AppendFrame appends the wire form of f to dst. The mask bit is never set.
func AppendFrame(dst []byte, f Frame) []byte {
	b0 := byte(f.Opcode) & opcodeMask
	if f.Fin {
		b0 |= FinBit
	}
	n := len(f.Payload)
	switch {
	case n <= 125:
		dst = append(dst, b0, byte(n))
	case n <= 0xFFFF:
		dst = append(dst, b0, len16Code)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, b0, len64Code)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}
	return append(dst, f.Payload...)
}

// EncodedLen returns the number of bytes AppendFrame adds for f.
func EncodedLen(f Frame) int {
	n := len(f.Payload)
	switch {
	case n <= 125:
		return 2 + n
	case n <= 0xFFFF:
		return 4 + n
	default:
		return 10 + n
	}
}

// PongFor builds the Pong answering ping, echoing its payload unchanged.
func PongFor(ping Frame) Frame {
	payload := make([]byte, len(ping.Payload))
	copy(payload, ping.Payload)
	return NewFrame(OpcodePong, payload)
}

// CloseFrame builds a Close frame carrying code and reason.
func CloseFrame(code uint16, reason string) Frame {
	if len(reason) > MaxControlPayloadLen-2 {
		reason = reason[:MaxControlPayloadLen-2]
	}
	payload := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(reason)), code)
	return NewFrame(OpcodeClose, append(payload, reason...))
}

// CloseEcho builds the reply to a received Close frame, echoing its status
// code. A Close without a status code is answered with an empty Close.
func CloseEcho(received Frame) Frame {
	if len(received.Payload) < 2 {
		return NewFrame(OpcodeClose, nil)
	}
	code := binary.BigEndian.Uint16(received.Payload)
	return CloseFrame(code, "")
}

// CloseCode returns the status code of a Close frame.
func CloseCode(f Frame) uint16 {
	if len(f.Payload) < 2 {
		return closeNoStatusReceived
	}
	return binary.BigEndian.Uint16(f.Payload)
}

// MaskPayload applies key to p in place. Clients use it to build frames.
func MaskPayload(p []byte, key [4]byte) {
	unmaskInPlace(p, key)
}

func checkHeader(b0 byte, f Frame) error {
	if b0&RsvBits != 0 {
		return protocolError(ErrReservedBits)
	}
	switch f.Opcode {
	case OpcodeText, OpcodeBinary, OpcodeClose, OpcodePing, OpcodePong:
	case OpcodeContinuation:
		return protocolError(ErrFragmented)
	default:
		return protocolError(fmt.Errorf("%w: %s", ErrReservedOpcode, f.Opcode))
	}
	if !f.Fin {
		return protocolError(ErrFragmented)
	}
	return nil
}

// payloadLimit resolves a configured limit: zero or negative means the
// default, anything above MaxFramePayloadLimit is clamped.
func payloadLimit(maxPayload int64) int64 {
	switch {
	case maxPayload <= 0:
		return MaxFramePayload
	case maxPayload > MaxFramePayloadLimit:
		return MaxFramePayloadLimit
	}
	return maxPayload
}

func checkLength(op Opcode, length uint64, maxPayload int64) error {
	if op.IsControl() && length > MaxControlPayloadLen {
		return protocolError(ErrControlTooLong)
	}
	if length>>63 != 0 {
		return protocolError(ErrInvalidLength)
	}
	if length > uint64(maxPayload) {
		return protocolError(fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, maxPayload))
	}
	return nil
}

func payloadLen(hdr []byte) uint64 {
	switch hdr[1] & lenMask {
	case len16Code:
		return uint64(binary.BigEndian.Uint16(hdr[2:]))
	case len64Code:
		return binary.BigEndian.Uint64(hdr[2:])
	default:
		return uint64(hdr[1] & lenMask)
	}
}

func readFull(r io.Reader, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if _, err := io.ReadFull(r, p); err != nil {
		if errors.Is(err, api.ErrWouldBlock) {
			return errIncomplete
		}
		return &DecodeError{Kind: KindIo, Err: err}
	}
	return nil
}

// unmaskInPlace applies XOR on payload using maskKey.
func unmaskInPlace(buf []byte, key [4]byte) {
	for i := range buf {
		buf[i] ^= key[i&3]
	}
}
