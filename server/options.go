// File: server/options.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/control"
	"github.com/rs/zerolog"
)

// PollerFactory creates the readiness poller used by Serve.
type PollerFactory func() (api.Poller, error)

// ListenerFactory binds the listening socket used by Serve.
type ListenerFactory func(addr string) (api.Listener, error)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithPollerFactory replaces the platform poller.
func WithPollerFactory(f PollerFactory) ServerOption {
	return func(s *Server) {
		s.newPoller = f
	}
}

// WithListenerFactory replaces the TCP listener.
func WithListenerFactory(f ListenerFactory) ServerOption {
	return func(s *Server) {
		s.newListener = f
	}
}

// WithLogger sets the parent logger.
func WithLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics shares a metrics set, e.g. with the admin router.
func WithMetrics(m *control.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithDebugHooks registers the server's hooks on dp.
func WithDebugHooks(dp *control.DebugHooks) ServerOption {
	return func(s *Server) {
		s.hooks = dp
	}
}

// WithExecutorWorkers sets the number of worker goroutines.
func WithExecutorWorkers(n int) ServerOption {
	return func(s *Server) {
		s.cfg.Workers = n
	}
}
