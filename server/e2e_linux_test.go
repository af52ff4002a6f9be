//go:build linux

package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startReal(t *testing.T, mode string) (*Server, string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Mode = mode
	cfg.Workers = 4
	cfg.ShutdownTimeout = 2 * time.Second
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	select {
	case <-srv.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("Serve: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("server not ready")
	}
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return")
		}
	})
	return srv, srv.Addr().String()
}

func dialWS(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	c, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/chat", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func expectText(t *testing.T, c *websocket.Conn, want string) {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	typ, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v (want %q)", err, want)
	}
	if typ != websocket.TextMessage || string(data) != want {
		t.Fatalf("got %d %q, want text %q", typ, data, want)
	}
}

func rename(t *testing.T, c *websocket.Conn, name string) {
	t.Helper()
	if err := c.WriteMessage(websocket.TextMessage, []byte("/name "+name)); err != nil {
		t.Fatal(err)
	}
	expectText(t, c, "* you are now "+name)
}

func TestEndToEndWebSocketChat(t *testing.T) {
	srv, addr := startReal(t, "websocket")
	// The rename acks prove each side is past the handshake. Bob joins after
	// alice's rename went out so his first message is his own ack.
	alice := dialWS(t, addr)
	rename(t, alice, "alice")
	bob := dialWS(t, addr)
	rename(t, bob, "bob")
	expectText(t, alice, "* Guest is now bob")

	if err := alice.WriteMessage(websocket.TextMessage, []byte("hi")); err != nil {
		t.Fatal(err)
	}
	expectText(t, bob, "alice: hi")

	if err := alice.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	_ = bob.SetReadDeadline(time.Now().Add(3 * time.Second))
	typ, data, err := bob.ReadMessage()
	if err != nil || typ != websocket.BinaryMessage || string(data) != "\x01\x02\x03" {
		t.Fatalf("binary relay: %d %v %v", typ, data, err)
	}

	// No echo to the sender.
	_ = alice.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := alice.ReadMessage(); err == nil {
		t.Fatalf("sender received %q", data)
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	if err := bob.WriteMessage(websocket.CloseMessage, msg); err != nil {
		t.Fatal(err)
	}
	_ = bob.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = bob.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.CloseNormalClosure {
		t.Fatalf("close echo: %v", err)
	}

	waitFor(t, "close of bob", func() bool { return srv.Stats()["connections"] == 1 })
}

func TestEndToEndRawHandshake(t *testing.T) {
	_, addr := startReal(t, "websocket")

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(3 * time.Second))
	if _, err := conn.Write([]byte(upgradeRequest)); err != nil {
		t.Fatal(err)
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Sec-WebSocket-Accept"); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("accept = %q", got)
	}
}

func TestEndToEndRejectsPlainHTTP(t *testing.T) {
	_, addr := startReal(t, "websocket")

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(3 * time.Second))
	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")); err != nil {
		t.Fatal(err)
	}
	r := bufio.NewReader(conn)
	resp, err := http.ReadResponse(r, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, err := r.ReadByte(); err == nil {
		t.Fatal("connection still open after rejection")
	}
}

func TestEndToEndLineMode(t *testing.T) {
	_, addr := startReal(t, "line")

	type peer struct {
		conn net.Conn
		r    *bufio.Reader
	}
	dial := func() peer {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { c.Close() })
		_ = c.SetDeadline(time.Now().Add(5 * time.Second))
		return peer{conn: c, r: bufio.NewReader(c)}
	}
	send := func(p peer, line string) {
		if _, err := p.conn.Write([]byte(line)); err != nil {
			t.Fatal(err)
		}
	}
	expect := func(p peer, want string) {
		t.Helper()
		got, err := p.r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v (want %q)", err, want)
		}
		if strings.TrimSuffix(got, "\n") != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}

	a := dial()
	send(a, "/name alice\n")
	expect(a, "* you are now alice")
	b := dial()
	send(b, "/name bob\r\n")
	expect(b, "* you are now bob")
	expect(a, "* Guest is now bob")

	send(a, "hello\r\n")
	expect(b, "alice: hello")
}
