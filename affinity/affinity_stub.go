//go:build !linux

// File: affinity/affinity_stub.go
// Package affinity
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub implementation for unsupported platforms.

package affinity

import "github.com/momentics/hioload-chat/api"

func setAffinityPlatform(int) error {
	return api.ErrNotSupported
}

// Current is not available on this platform.
func Current() ([]int, error) {
	return nil, api.ErrNotSupported
}
