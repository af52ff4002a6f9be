// File: protocol/handshake.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server side of the RFC6455 opening handshake: header collection, validation,
// Sec-WebSocket-Accept computation and response serialization.

package protocol

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	WebSocketGUID            = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	MaxHandshakeHeadersSize  = 8192
	HeaderConnection         = "Connection"
	HeaderUpgrade            = "Upgrade"
	HeaderSecWebSocketKey    = "Sec-WebSocket-Key"
	HeaderSecWebSocketVer    = "Sec-WebSocket-Version"
	HeaderSecWebSocketAccept = "Sec-WebSocket-Accept"
	RequiredWebSocketVersion = "13"
)

var (
	ErrInvalidUpgradeHeaders = errors.New("invalid WebSocket upgrade headers")
	ErrMissingWebSocketKey   = errors.New("missing Sec-WebSocket-Key header")
	ErrBadWebSocketVersion   = errors.New("unsupported WebSocket version; only '13' is supported")
	ErrMethodNotAllowed      = errors.New("handshake method must be GET")
)

// ComputeAcceptKey computes the Sec-WebSocket-Accept value from the client's key.
func ComputeAcceptKey(clientKey string) string {
	hash := sha1.Sum([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// Handshake collects request headers pushed by RequestParser and validates
// the upgrade. It implements HeaderHandler and RequestLineHandler.
type Handshake struct {
	Method  string
	URI     string
	headers map[string][]string
	field   string
	done    bool
	upgrade bool
}

// NewHandshake returns an empty collector.
func NewHandshake() *Handshake {
	return &Handshake{headers: make(map[string][]string)}
}

// OnRequestLine records the request method and target.
func (h *Handshake) OnRequestLine(method, uri string) {
	h.Method, h.URI = method, uri
}

// OnHeaderField starts a header.
func (h *Handshake) OnHeaderField(field string) {
	h.field = http.CanonicalHeaderKey(field)
}

// OnHeaderValue adds a value to the current header.
func (h *Handshake) OnHeaderValue(value string) {
	if h.field == "" {
		return
	}
	h.headers[h.field] = append(h.headers[h.field], value)
}

// OnHeadersComplete marks the header block as finished.
func (h *Handshake) OnHeadersComplete(upgrade bool) {
	h.done, h.upgrade = true, upgrade
}

// Complete reports whether the full header block was seen.
func (h *Handshake) Complete() bool { return h.done }

// Header returns the first value of name.
func (h *Handshake) Header(name string) string {
	vs := h.headers[http.CanonicalHeaderKey(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Key returns the client's Sec-WebSocket-Key.
func (h *Handshake) Key() string {
	return strings.TrimSpace(h.Header(HeaderSecWebSocketKey))
}

// Validate checks the collected request is a version 13 WebSocket upgrade.
func (h *Handshake) Validate() error {
	if h.Method != "" && h.Method != http.MethodGet {
		return ErrMethodNotAllowed
	}
	if !h.upgrade || !h.containsToken(HeaderUpgrade, "websocket") {
		return ErrInvalidUpgradeHeaders
	}
	if strings.TrimSpace(h.Header(HeaderSecWebSocketVer)) != RequiredWebSocketVersion {
		return ErrBadWebSocketVersion
	}
	if h.Key() == "" {
		return ErrMissingWebSocketKey
	}
	return nil
}

// AcceptKey validates the request and returns the accept token.
func (h *Handshake) AcceptKey() (string, error) {
	if err := h.Validate(); err != nil {
		return "", err
	}
	return ComputeAcceptKey(h.Key()), nil
}

// Reset drops collected headers. The peer key is not needed after the
// response has been built.
func (h *Handshake) Reset() {
	clear(h.headers)
	h.Method, h.URI, h.field = "", "", ""
	h.done, h.upgrade = false, false
}

func (h *Handshake) containsToken(name, token string) bool {
	for _, v := range h.headers[http.CanonicalHeaderKey(name)] {
		if containsToken(v, token) {
			return true
		}
	}
	return false
}

// containsToken checks a comma separated header value for token, ignoring case.
func containsToken(headerValue, token string) bool {
	for _, p := range strings.Split(headerValue, ",") {
		if strings.EqualFold(strings.TrimSpace(p), token) {
			return true
		}
	}
	return false
}

// WriteHandshakeResponse writes the 101 Switching Protocols response.
func WriteHandshakeResponse(w io.Writer, accept string) error {
	_, err := fmt.Fprintf(w,
		"HTTP/1.1 101 Switching Protocols\r\n"+
			"%s: websocket\r\n"+
			"%s: Upgrade\r\n"+
			"%s: %s\r\n\r\n",
		HeaderUpgrade, HeaderConnection, HeaderSecWebSocketAccept, accept)
	return err
}

// WriteBadRequest writes a 400 response that closes the connection.
func WriteBadRequest(w io.Writer, reason error) error {
	body := "bad request"
	if reason != nil {
		body = reason.Error()
	}
	_, err := fmt.Fprintf(w,
		"HTTP/1.1 400 Bad Request\r\n"+
			"Connection: close\r\n"+
			"Content-Type: text/plain; charset=utf-8\r\n"+
			"%s: %s\r\n"+
			"Content-Length: %d\r\n\r\n%s",
		HeaderSecWebSocketVer, RequiredWebSocketVersion, len(body), body)
	return err
}
