// File: reactor/doc.go
// Package reactor
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor provides the readiness poller that drives the chat server:
// edge-triggered, one-shot registrations with an out-of-band wake, implemented
// over epoll on Linux.
package reactor
