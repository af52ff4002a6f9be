package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const sampleRequest = "GET /chat HTTP/1.1\r\n" +
	"Host: server.example.com\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: keep-alive, Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n\r\n"

func TestComputeAcceptKey(t *testing.T) {
	if got := ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("ComputeAcceptKey = %q", got)
	}
}

func TestRequestParserIncremental(t *testing.T) {
	var p RequestParser
	hs := NewHandshake()
	for i := 0; i < len(sampleRequest)-1; i++ {
		n, err := p.Feed([]byte(sampleRequest[:i]), hs)
		if n != 0 || err != nil || hs.Complete() {
			t.Fatalf("prefix %d: n=%d err=%v", i, n, err)
		}
	}
	buf := []byte(sampleRequest + "\x81\x80")
	n, err := p.Feed(buf, hs)
	if err != nil || n != len(sampleRequest) {
		t.Fatalf("Feed = %d, %v", n, err)
	}
	if !hs.Complete() || hs.Method != "GET" || hs.URI != "/chat" {
		t.Fatalf("handshake = %+v", hs)
	}
	if hs.Header("host") != "server.example.com" {
		t.Fatalf("Host = %q", hs.Header("host"))
	}
	accept, err := hs.AcceptKey()
	if err != nil || accept != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("AcceptKey = %q, %v", accept, err)
	}
	hs.Reset()
	if hs.Key() != "" || hs.Complete() {
		t.Fatal("Reset kept state")
	}
}

type recordingHandler struct {
	events  []string
	upgrade bool
}

func (r *recordingHandler) OnHeaderField(f string) { r.events = append(r.events, "F:"+f) }
func (r *recordingHandler) OnHeaderValue(v string) { r.events = append(r.events, "V:"+v) }
func (r *recordingHandler) OnHeadersComplete(u bool) { r.upgrade = u; r.events = append(r.events, "done") }

func TestRequestParserCallbackOrder(t *testing.T) {
	var p RequestParser
	var h recordingHandler
	if _, err := p.Feed([]byte(sampleRequest), &h); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !h.upgrade {
		t.Fatal("upgrade not detected")
	}
	if h.events[0] != "F:Host" || h.events[len(h.events)-1] != "done" {
		t.Fatalf("events = %v", h.events)
	}
	for i := 0; i+1 < len(h.events)-1; i += 2 {
		if !strings.HasPrefix(h.events[i], "F:") || !strings.HasPrefix(h.events[i+1], "V:") {
			t.Fatalf("field/value not paired at %d: %v", i, h.events)
		}
	}
}

func TestRequestParserLimits(t *testing.T) {
	p := RequestParser{MaxSize: 64}
	big := "GET / HTTP/1.1\r\nX-Pad: " + strings.Repeat("a", 100)
	if _, err := p.Feed([]byte(big), NewHandshake()); !errors.Is(err, ErrHeadersTooLarge) {
		t.Fatalf("err = %v", err)
	}
	var q RequestParser
	if _, err := q.Feed([]byte("NOT HTTP\r\n\r\n"), NewHandshake()); !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("err = %v", err)
	}
}

func TestHandshakeValidate(t *testing.T) {
	tests := []struct {
		name string
		req  string
		want error
	}{
		{"ok", sampleRequest, nil},
		{"plain http", "GET / HTTP/1.1\r\nHost: x\r\n\r\n", ErrInvalidUpgradeHeaders},
		{"post", strings.Replace(sampleRequest, "GET", "POST", 1), ErrMethodNotAllowed},
		{"version", strings.Replace(sampleRequest, "Version: 13", "Version: 8", 1), ErrBadWebSocketVersion},
		{"no key", strings.Replace(sampleRequest, "Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n", "", 1), ErrMissingWebSocketKey},
		{"upgrade h2c", strings.Replace(sampleRequest, "Upgrade: websocket", "Upgrade: h2c", 1), ErrInvalidUpgradeHeaders},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p RequestParser
			hs := NewHandshake()
			if _, err := p.Feed([]byte(tt.req), hs); err != nil {
				t.Fatalf("Feed: %v", err)
			}
			if err := hs.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWriteHandshakeResponse(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHandshakeResponse(&buf, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="); err != nil {
		t.Fatal(err)
	}
	want := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n\r\n"
	if buf.String() != want {
		t.Fatalf("response = %q", buf.String())
	}

	buf.Reset()
	WriteBadRequest(&buf, ErrMissingWebSocketKey)
	if !strings.HasPrefix(buf.String(), "HTTP/1.1 400 Bad Request\r\n") ||
		!strings.HasSuffix(buf.String(), ErrMissingWebSocketKey.Error()) {
		t.Fatalf("400 response = %q", buf.String())
	}
}
