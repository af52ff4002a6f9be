// File: internal/concurrency/errors.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "errors"

var (
	// ErrExecutorClosed is returned by Submit after Close.
	ErrExecutorClosed = errors.New("executor is closed")
	// ErrExecutorSaturated is returned by Submit when the task queue is full.
	ErrExecutorSaturated = errors.New("executor queue is full")
)
