// File: transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package transport provides non-blocking TCP sockets for the reactor. Reads
// and writes map EAGAIN to api.ErrWouldBlock and EINTR to api.ErrInterrupted,
// so handlers can apply a single partial-I/O policy.
package transport
