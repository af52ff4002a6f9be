//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Package reactor
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-chat/api"
)

// New returns an error for unsupported platforms.
func New() (api.Poller, error) {
	return nil, fmt.Errorf("reactor: %w on this platform", api.ErrNotSupported)
}
