// File: server/server.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server owns the listening socket, the poller, the worker pool and the
// connection registry. Serve runs the dispatcher loop on the calling
// goroutine, which is the only goroutine that touches registrations.

package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/control"
	"github.com/momentics/hioload-chat/internal/concurrency"
	"github.com/momentics/hioload-chat/internal/session"
	"github.com/momentics/hioload-chat/pool"
	"github.com/momentics/hioload-chat/reactor"
	"github.com/momentics/hioload-chat/transport"
	"github.com/rs/zerolog"
)

var (
	// ErrAlreadyRunning is returned by a second call to Serve.
	ErrAlreadyRunning = errors.New("server already running")
	// ErrNotServing is reported by Health outside of Serve.
	ErrNotServing = errors.New("server not serving")
)

// Server is the chat broadcast server.
type Server struct {
	cfg      *Config
	connOpts session.Options
	log      zerolog.Logger
	metrics  *control.Metrics
	hooks    *control.DebugHooks

	newPoller   PollerFactory
	newListener ListenerFactory

	// Set by Serve before ready is closed.
	poller   api.Poller
	listener api.Listener
	exec     *concurrency.Executor
	mailbox  *concurrency.Mailbox[session.Message]

	// Owned by the dispatcher goroutine.
	reg    *session.Registry
	bus    *session.Bus
	nextID api.ConnectionID

	mu        sync.RWMutex
	addr      net.Addr
	ready     chan struct{}
	readyOnce sync.Once
	running   atomic.Bool
}

// New builds a Server. cfg is copied; nil selects DefaultConfig.
func New(cfg *Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	s := &Server{
		cfg:   &c,
		log:   zerolog.Nop(),
		reg:   session.NewRegistry(),
		ready: make(chan struct{}),
		newPoller: func() (api.Poller, error) {
			return reactor.New()
		},
		newListener: func(addr string) (api.Listener, error) {
			l, err := transport.Listen(addr, transport.DefaultBacklog)
			if err != nil {
				return nil, err
			}
			return l, nil
		},
	}
	for _, o := range opts {
		o(s)
	}

	variant, err := session.ParseVariant(s.cfg.Mode)
	if err != nil {
		return nil, err
	}
	if s.cfg.QueueSize <= 0 || s.cfg.EventBatch <= 0 {
		return nil, fmt.Errorf("queue_size and event_batch must be positive: %w", api.ErrInvalidArgument)
	}
	if s.metrics == nil {
		s.metrics = control.NewMetrics()
	}
	s.bus = session.NewBus(s.reg)
	s.log = s.log.With().Str("component", "dispatcher").Logger()
	readBuffer := s.cfg.ReadBuffer
	if readBuffer <= 0 {
		readBuffer = session.DefaultReadBuffer
	}
	s.connOpts = session.Options{
		Variant:           variant,
		MaxFramePayload:   s.cfg.MaxFramePayload,
		MaxHandshakeSize:  s.cfg.MaxHandshakeSize,
		MaxInbound:        s.cfg.MaxInbound,
		MaxOutbound:       s.cfg.MaxOutbound,
		ReadBuffer:        readBuffer,
		ReadPool:          pool.NewBytePool(readBuffer),
		DefaultName:       s.cfg.DefaultName,
		MessagesPerSecond: s.cfg.MessagesPerSecond,
		MessageBurst:      s.cfg.MessageBurst,
		Logger:            s.log.With().Str("component", "session").Logger(),
		Observer:          s.metrics,
	}
	if s.hooks != nil {
		s.registerHooks(s.hooks)
	}
	return s, nil
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *control.Metrics { return s.metrics }

// Ready is closed once Serve has bound the listener.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listener address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Health reports nil while the dispatcher loop is serving.
func (s *Server) Health() error {
	if !s.running.Load() || s.Addr() == nil {
		return ErrNotServing
	}
	return nil
}

// String names the service for the supervisor.
func (s *Server) String() string { return "chat-server" }

// Stats returns a snapshot of runtime counters. Safe from any goroutine.
func (s *Server) Stats() map[string]any {
	out := map[string]any{
		"connections": s.reg.Len(),
		"mode":        s.connOpts.Variant.String(),
		"running":     s.Health() == nil,
	}
	if a := s.Addr(); a != nil {
		out["addr"] = a.String()
	}
	s.mu.RLock()
	exec, mailbox := s.exec, s.mailbox
	s.mu.RUnlock()
	if exec != nil {
		out["executor"] = exec.Stats()
	}
	if mailbox != nil {
		out["mailbox_pending"] = mailbox.Len()
	}
	out["read_pool"] = s.connOpts.ReadPool.Stats()
	return out
}

func (s *Server) registerHooks(dp *control.DebugHooks) {
	dp.RegisterHook("server", func() any { return s.Stats() })
	dp.RegisterHook("config", func() any { return *s.cfg })
}
