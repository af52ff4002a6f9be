// File: internal/session/websocket.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket variant: opening handshake and frame processing.

package session

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/momentics/hioload-chat/protocol"
)

var errInvalidUTF8 = errors.New("text frame is not valid UTF-8")

func (c *Connection) readHandshake() outcome {
	return c.readLoop(c.processHandshake)
}

// processHandshake feeds the buffered request to the header parser. Once the
// head is complete the 101 response is queued and reading stops until it has
// been flushed.
func (c *Connection) processHandshake() *outcome {
	n, err := c.parser.Feed(c.inbound.Bytes(), c.handshake)
	if err != nil {
		return c.rejectHandshake(err)
	}
	if n == 0 {
		return nil
	}
	c.inbound.Drain(n)
	accept, err := c.handshake.AcceptKey()
	if err != nil {
		return c.rejectHandshake(err)
	}
	c.log.Debug().Str("uri", c.handshake.URI).Msg("upgrade requested")
	c.handshake.Reset()
	_ = protocol.WriteHandshakeResponse(c.outbound, accept)
	c.setState(StateHandshakeResponse)
	out := rearm
	return &out
}

func (c *Connection) rejectHandshake(err error) *outcome {
	c.log.Warn().Err(err).Msg("handshake rejected")
	c.opts.Observer.ProtocolError("handshake")
	_ = protocol.WriteBadRequest(c.outbound, err)
	return c.flushAndClose(ReasonHandshakeRejected)
}

func (c *Connection) writeHandshake() outcome {
	if err := c.flush(); err != nil {
		c.log.Debug().Err(err).Msg("handshake write failed")
		return closeWith(ReasonTransportError)
	}
	if c.outbound.Len() > 0 {
		return rearm
	}
	c.setState(StateRunning)
	c.log.Info().Msg("websocket session established")
	// Frames pipelined behind the request are already buffered.
	if c.inbound.Len() > 0 {
		if out := c.processFrames(); out != nil {
			return *out
		}
	}
	return rearm
}

// processFrames decodes every complete frame in inbound.
func (c *Connection) processFrames() *outcome {
	for {
		f, n, err := protocol.Decode(c.inbound.Bytes(), c.opts.MaxFramePayload)
		if err != nil {
			if errors.Is(err, protocol.ErrIncomplete) {
				return nil
			}
			return c.failProtocol(err)
		}
		c.inbound.Drain(n)
		c.opts.Observer.FrameReceived(f.Opcode)

		switch f.Opcode {
		case protocol.OpcodeText:
			if !utf8.Valid(f.Payload) {
				return c.failProtocol(errInvalidUTF8)
			}
			c.onMessage(f.Opcode, f.Payload)
		case protocol.OpcodeBinary:
			c.onMessage(f.Opcode, f.Payload)
		case protocol.OpcodePing:
			pong := protocol.PongFor(f)
			if c.Enqueue(pong.Opcode, pong.Payload) == EnqueueOverflow {
				out := closeWith(ReasonResourceExhausted)
				return &out
			}
		case protocol.OpcodePong:
			c.log.Debug().Int("len", len(f.Payload)).Msg("pong received")
		case protocol.OpcodeClose:
			c.log.Debug().Uint16("code", protocol.CloseCode(f)).Msg("close frame received")
			echo := protocol.CloseEcho(f)
			c.Enqueue(echo.Opcode, echo.Payload)
			return c.flushAndClose(ReasonPeerClose)
		}
	}
}

// failProtocol answers a framing violation with a Close frame and closes.
func (c *Connection) failProtocol(err error) *outcome {
	code, reason := protocol.CloseProtocolError, ReasonProtocolError
	switch {
	case errors.Is(err, protocol.ErrFrameTooLarge):
		code, reason = protocol.CloseMessageTooBig, ReasonResourceExhausted
	case errors.Is(err, errInvalidUTF8):
		code = protocol.CloseInvalidPayload
	}
	c.log.Warn().Err(err).Uint16("close_code", code).Msg("protocol violation")
	c.opts.Observer.ProtocolError(reason)
	cf := protocol.CloseFrame(code, "")
	c.Enqueue(cf.Opcode, cf.Payload)
	return c.flushAndClose(reason)
}

// onMessage handles one application message from the peer: chat commands are
// applied locally, everything else is handed to the reactor for fan-out.
func (c *Connection) onMessage(op protocol.Opcode, payload []byte) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.opts.Observer.MessageDropped("rate_limited")
		c.log.Warn().Msg("message rate exceeded, dropping")
		return
	}
	if op == protocol.OpcodeBinary {
		c.poster.Post(Broadcast(c.id, op, payload))
		return
	}
	text := string(payload)
	if arg, ok := strings.CutPrefix(text, "/name"); ok && (arg == "" || arg[0] == ' ') {
		c.rename(strings.TrimSpace(arg))
		return
	}
	c.poster.Post(Broadcast(c.id, protocol.OpcodeText, []byte(c.name+": "+text)))
}

func (c *Connection) rename(name string) {
	if name == "" || len(name) > MaxDisplayNameLen || !utf8.ValidString(name) {
		c.Enqueue(protocol.OpcodeText, []byte("* invalid name"))
		return
	}
	old := c.name
	c.name = name
	c.log.Info().Str("from", old).Str("to", name).Msg("renamed")
	c.Enqueue(protocol.OpcodeText, []byte("* you are now "+name))
	c.poster.Post(Broadcast(c.id, protocol.OpcodeText, []byte("* "+old+" is now "+name)))
}
