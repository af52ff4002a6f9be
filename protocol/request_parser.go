// File: protocol/request_parser.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RequestParser is a push-style HTTP/1.1 request head parser. Callers feed it
// the bytes received so far; once the head is complete it reports every
// header to a HeaderHandler and whether the request asks for an upgrade.

package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"sort"
)

var (
	ErrHeadersTooLarge  = errors.New("handshake headers too large")
	ErrMalformedRequest = errors.New("malformed handshake request")
)

var headEnd = []byte("\r\n\r\n")

// HeaderHandler receives parsed header events.
type HeaderHandler interface {
	OnHeaderField(field string)
	OnHeaderValue(value string)
	OnHeadersComplete(upgrade bool)
}

// RequestLineHandler is implemented by handlers that also want the request line.
type RequestLineHandler interface {
	OnRequestLine(method, uri string)
}

// RequestParser parses one request head. The zero value uses
// MaxHandshakeHeadersSize.
type RequestParser struct {
	MaxSize int
}

// Feed inspects buf, which holds every byte received so far. It returns 0 and
// a nil error while the head is incomplete. Once complete it emits the header
// events to h and returns the length of the head, which the caller drains.
func (p *RequestParser) Feed(buf []byte, h HeaderHandler) (int, error) {
	limit := p.MaxSize
	if limit <= 0 {
		limit = MaxHandshakeHeadersSize
	}
	idx := bytes.Index(buf, headEnd)
	if idx < 0 {
		if len(buf) > limit {
			return 0, ErrHeadersTooLarge
		}
		return 0, nil
	}
	n := idx + len(headEnd)
	if n > limit {
		return 0, ErrHeadersTooLarge
	}

	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(buf[:n])))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if rl, ok := h.(RequestLineHandler); ok {
		rl.OnRequestLine(req.Method, req.RequestURI)
	}

	// Host is lifted out of the header map by net/http.
	if req.Host != "" {
		h.OnHeaderField("Host")
		h.OnHeaderValue(req.Host)
	}
	fields := make([]string, 0, len(req.Header))
	for k := range req.Header {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		for _, v := range req.Header[k] {
			h.OnHeaderField(k)
			h.OnHeaderValue(v)
		}
	}
	h.OnHeadersComplete(isUpgrade(req.Header))
	return n, nil
}

func isUpgrade(hdr http.Header) bool {
	if hdr.Get(HeaderUpgrade) == "" {
		return false
	}
	for _, v := range hdr.Values(HeaderConnection) {
		if containsToken(v, "upgrade") {
			return true
		}
	}
	return false
}
