// File: internal/session/line.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Line variant: newline-delimited messages over a raw TCP stream, with no
// handshake. Each delivered message is written followed by a line feed.

package session

import (
	"bytes"

	"github.com/momentics/hioload-chat/protocol"
)

var lineFeed = []byte{'\n'}

// processLines pops every complete line from inbound.
func (c *Connection) processLines() *outcome {
	for {
		i := c.inbound.IndexByte('\n')
		if i < 0 {
			return nil
		}
		line := c.inbound.Pop(i)
		c.inbound.Drain(1)
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			continue
		}
		c.opts.Observer.FrameReceived(protocol.OpcodeText)
		c.onMessage(protocol.OpcodeText, line)
	}
}
