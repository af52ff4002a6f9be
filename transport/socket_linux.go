//go:build linux
// +build linux

// File: transport/socket_linux.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP socket and listener built directly on x/sys/unix so their
// descriptors can be registered with the epoll reactor.

package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/momentics/hioload-chat/api"
	"golang.org/x/sys/unix"
)

// DefaultBacklog is used when Listen is given a non-positive backlog.
const DefaultBacklog = 1024

// Socket is a connected, non-blocking TCP stream.
type Socket struct {
	fd     int
	remote net.Addr
	once   sync.Once
	err    error
}

var _ api.Stream = (*Socket)(nil)

// Read reads into p without blocking.
func (s *Socket) Read(p []byte) (int, error) {
	n, err := unix.Read(s.fd, p)
	if err != nil {
		return 0, mapErrno("read", err)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes from p without blocking and may write a prefix only.
func (s *Socket) Write(p []byte) (int, error) {
	n, err := unix.Write(s.fd, p)
	if err != nil {
		return 0, mapErrno("write", err)
	}
	return n, nil
}

// Close closes the descriptor exactly once.
func (s *Socket) Close() error {
	s.once.Do(func() {
		s.err = unix.Close(s.fd)
	})
	return s.err
}

// Fd returns the socket descriptor.
func (s *Socket) Fd() int { return s.fd }

// RemoteAddr returns the peer address.
func (s *Socket) RemoteAddr() net.Addr { return s.remote }

// Listener is a non-blocking TCP listening socket.
type Listener struct {
	fd   int
	addr net.Addr
	once sync.Once
	err  error
}

var _ api.Listener = (*Listener)(nil)

// Listen binds a non-blocking TCP listener on addr ("host:port").
func Listen(addr string, backlog int) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", addr, err)
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	family := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := tcpAddr.IP.To4(); ip4 != nil || tcpAddr.IP == nil {
		sa4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		if ip4 != nil {
			copy(sa4.Addr[:], ip4)
		}
		sa = sa4
	} else {
		family = unix.AF_INET6
		sa6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(sa6.Addr[:], tcpAddr.IP.To16())
		sa = sa6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	return &Listener{fd: fd, addr: sockaddrToTCP(bound)}, nil
}

// Accept returns the next pending connection or api.ErrWouldBlock when the
// accept queue is empty. Aborted handshakes and signals are retried.
func (l *Listener) Accept() (api.Stream, error) {
	for {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.ECONNABORTED) {
				continue
			}
			return nil, mapErrno("accept", err)
		}
		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		return &Socket{fd: nfd, remote: sockaddrToTCP(sa)}, nil
	}
}

// Close closes the listening descriptor exactly once.
func (l *Listener) Close() error {
	l.once.Do(func() {
		l.err = unix.Close(l.fd)
	})
	return l.err
}

// Fd returns the listening descriptor.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the bound address, with the kernel-chosen port for ":0".
func (l *Listener) Addr() net.Addr { return l.addr }

func mapErrno(op string, err error) error {
	switch {
	case errors.Is(err, unix.EAGAIN):
		return api.ErrWouldBlock
	case errors.Is(err, unix.EINTR):
		return api.ErrInterrupted
	case errors.Is(err, unix.EBADF):
		return fmt.Errorf("%s: %w", op, api.ErrClosed)
	default:
		return api.Wrap(api.ErrCodeTransport, op, err)
	}
}

func sockaddrToTCP(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]).To16(), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	default:
		return &net.TCPAddr{}
	}
}
