// File: internal/concurrency/doc.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for hioload-chat: a bounded worker executor that runs
// connection handlers off the reactor goroutine, and a mailbox that carries
// control messages back to it.
package concurrency
