// File: server/config.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"runtime"
	"time"

	"github.com/momentics/hioload-chat/internal/session"
	"github.com/momentics/hioload-chat/protocol"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr        string        `koanf:"listen_addr" json:"listen_addr" validate:"required,hostname_port"`
	AdminAddr         string        `koanf:"admin_addr" json:"admin_addr" validate:"omitempty,hostname_port"`
	Mode              string        `koanf:"mode" json:"mode" validate:"oneof=websocket line"`
	Workers           int           `koanf:"workers" json:"workers" validate:"gte=0,lte=4096"`
	QueueSize         int           `koanf:"queue_size" json:"queue_size" validate:"gte=1"`
	MaxFramePayload   int64         `koanf:"max_frame_payload" json:"max_frame_payload" validate:"gte=125,lte=1073741824"`
	MaxHandshakeSize  int           `koanf:"max_handshake_size" json:"max_handshake_size" validate:"gte=256"`
	MaxInbound        int           `koanf:"max_inbound" json:"max_inbound" validate:"gte=0"`
	MaxOutbound       int           `koanf:"max_outbound" json:"max_outbound" validate:"gte=0"`
	ReadBuffer        int           `koanf:"read_buffer" json:"read_buffer" validate:"gte=512"`
	EventBatch        int           `koanf:"event_batch" json:"event_batch" validate:"gte=1"`
	MessagesPerSecond float64       `koanf:"messages_per_second" json:"messages_per_second" validate:"gte=0"`
	MessageBurst      int           `koanf:"message_burst" json:"message_burst" validate:"gte=0"`
	DefaultName       string        `koanf:"default_name" json:"default_name" validate:"max=32"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout" validate:"gte=0"`
	ReactorCPU        int           `koanf:"reactor_cpu" json:"reactor_cpu" validate:"gte=-1"` // -1 leaves the dispatcher unpinned
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       "0.0.0.0:9000",
		AdminAddr:        "127.0.0.1:9090",
		Mode:             "websocket",
		Workers:          0,
		QueueSize:        1024,
		MaxFramePayload:  protocol.MaxFramePayload,
		MaxHandshakeSize: protocol.MaxHandshakeHeadersSize,
		MaxOutbound:      session.DefaultMaxOutbound,
		ReadBuffer:       session.DefaultReadBuffer,
		EventBatch:       256,
		MessageBurst:     20,
		DefaultName:      session.DefaultName,
		ShutdownTimeout:  10 * time.Second,
		ReactorCPU:       -1,
	}
}

// workers resolves Workers = 0 to the CPU count.
func (c *Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
