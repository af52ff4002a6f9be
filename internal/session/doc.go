// File: internal/session/doc.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection protocol state for the chat server. A Connection owns one
// non-blocking socket and drives it through the WebSocket handshake and frame
// exchange (or the line-delimited variant). Handlers run on executor workers
// and report back to the reactor only through Messages: every handler run
// ends in exactly one Rearm or Close, optionally preceded by Broadcasts.
//
// The Registry and Bus are owned by the reactor goroutine and are not safe
// for concurrent use.

package session
