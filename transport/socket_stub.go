//go:build !linux
// +build !linux

// File: transport/socket_stub.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub implementation for unsupported platforms.

package transport

import (
	"fmt"

	"github.com/momentics/hioload-chat/api"
)

// Listener is unavailable on this platform.
type Listener struct {
	api.Listener
}

// Listen returns an error for unsupported platforms.
func Listen(addr string, backlog int) (*Listener, error) {
	return nil, fmt.Errorf("transport: %w on this platform", api.ErrNotSupported)
}
