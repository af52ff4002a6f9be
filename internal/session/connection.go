// File: internal/session/connection.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection owns one socket and its state machine. Two locks guard it:
// mu serializes handler runs and covers the buffers and the display name;
// qmu covers only the state and the pending output queue, so the reactor can
// enqueue broadcasts and derive interest without waiting on socket I/O.

package session

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/internal/bytequeue"
	"github.com/momentics/hioload-chat/pool"
	"github.com/momentics/hioload-chat/protocol"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Defaults applied by NewConnection to zero Options fields.
const (
	DefaultName        = "Guest"
	DefaultReadBuffer  = 16 << 10
	DefaultMaxOutbound = 4 << 20
	MaxDisplayNameLen  = 32
	initialQueueCap    = 4 << 10
)

var (
	errInboundOverflow  = api.NewError(api.ErrCodeResourceExhausted, "inbound buffer limit exceeded")
	errOutboundOverflow = api.NewError(api.ErrCodeResourceExhausted, "outbound buffer limit exceeded")
)

// Options configure every connection accepted by one server.
type Options struct {
	Variant           Variant
	MaxFramePayload   int64
	MaxHandshakeSize  int
	MaxInbound        int
	MaxOutbound       int
	ReadBuffer        int
	ReadPool          *pool.BytePool
	DefaultName       string
	MessagesPerSecond float64
	MessageBurst      int
	Logger            zerolog.Logger
	Observer          Observer
}

func (o Options) withDefaults() Options {
	if o.MaxFramePayload <= 0 {
		o.MaxFramePayload = protocol.MaxFramePayload
	}
	if o.MaxFramePayload > protocol.MaxFramePayloadLimit {
		o.MaxFramePayload = protocol.MaxFramePayloadLimit
	}
	if o.MaxHandshakeSize <= 0 {
		o.MaxHandshakeSize = protocol.MaxHandshakeHeadersSize
	}
	if o.MaxInbound <= 0 {
		o.MaxInbound = int(o.MaxFramePayload) + protocol.MaxFrameHeaderLen
	}
	if o.MaxOutbound <= 0 {
		o.MaxOutbound = max(DefaultMaxOutbound, 2*(int(o.MaxFramePayload)+protocol.MaxFrameHeaderLen))
	}
	if o.ReadBuffer <= 0 {
		o.ReadBuffer = DefaultReadBuffer
	}
	if o.ReadPool == nil || o.ReadPool.Size() != o.ReadBuffer {
		o.ReadPool = pool.NewBytePool(o.ReadBuffer)
	}
	if o.DefaultName == "" {
		o.DefaultName = DefaultName
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 1
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	return o
}

// outcome is what a handler run asks the reactor to do next.
type outcome struct {
	close  bool
	reason string
}

var rearm = outcome{}

func closeWith(reason string) outcome { return outcome{close: true, reason: reason} }

// Connection is one accepted socket.
type Connection struct {
	id      api.ConnectionID
	session uuid.UUID
	stream  api.Stream
	poster  Poster
	opts    Options
	log     zerolog.Logger
	limiter *rate.Limiter

	mu        sync.Mutex
	inbound   *bytequeue.Queue
	outbound  *bytequeue.Queue
	name      string
	handshake *protocol.Handshake
	parser    protocol.RequestParser

	qmu     sync.Mutex
	state   State
	pending *bytequeue.Queue

	// outLen mirrors outbound.Len so Enqueue can check the limit under qmu.
	outLen atomic.Int64
	refs   atomic.Int32
	closed atomic.Bool
}

// NewConnection wraps stream in state New. The returned connection holds one
// reference, owned by the registry.
func NewConnection(id api.ConnectionID, stream api.Stream, poster Poster, opts Options) *Connection {
	opts = opts.withDefaults()
	sid := uuid.New()
	c := &Connection{
		id:       id,
		session:  sid,
		stream:   stream,
		poster:   poster,
		opts:     opts,
		inbound:  bytequeue.New(initialQueueCap),
		outbound: bytequeue.New(initialQueueCap),
		pending:  bytequeue.New(0),
		name:     opts.DefaultName,
		parser:   protocol.RequestParser{MaxSize: opts.MaxHandshakeSize},
	}
	c.log = opts.Logger.With().
		Uint64("conn_id", uint64(id)).
		Str("session", sid.String()).
		Str("variant", opts.Variant.String()).
		Logger()
	if opts.MessagesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.MessageBurst)
	}
	if opts.Variant == VariantWebSocket {
		c.handshake = protocol.NewHandshake()
	}
	c.refs.Store(1)
	return c
}

// ID returns the connection identifier.
func (c *Connection) ID() api.ConnectionID { return c.id }

// Session returns the log correlation id.
func (c *Connection) Session() uuid.UUID { return c.session }

// Fd returns the socket descriptor for poller registration.
func (c *Connection) Fd() int { return c.stream.Fd() }

// Stream returns the underlying socket.
func (c *Connection) Stream() api.Stream { return c.stream }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return c.state
}

// Interest derives the registration interest from the current state.
func (c *Connection) Interest() api.Interest {
	return c.State().Interest()
}

// Name returns the display name.
func (c *Connection) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Register performs the transition out of New and returns the interest for
// the first poller registration. It is called once by the reactor.
func (c *Connection) Register() api.Interest {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if c.state == StateNew {
		if c.opts.Variant == VariantLine {
			c.state = StateRunning
		} else {
			c.state = StateAwaitingHandshake
		}
	}
	return c.state.Interest()
}

// EnqueueResult tells the caller what Enqueue did with a message.
type EnqueueResult uint8

const (
	// EnqueueSkipped: the connection is closed or not running yet.
	EnqueueSkipped EnqueueResult = iota
	// EnqueueAccepted: the message is queued and writable interest is wanted.
	EnqueueAccepted
	// EnqueueOverflow: queued output would exceed MaxOutbound. The message was
	// dropped and the connection should be closed.
	EnqueueOverflow
)

// Enqueue queues a message for this connection. Connections that have not
// finished the handshake skip messages.
func (c *Connection) Enqueue(op protocol.Opcode, payload []byte) EnqueueResult {
	if c.closed.Load() {
		return EnqueueSkipped
	}
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if !c.state.IsRunning() {
		return EnqueueSkipped
	}
	var f protocol.Frame
	size := len(payload) + len(lineFeed)
	if c.opts.Variant == VariantWebSocket {
		f = protocol.NewFrame(op, payload)
		size = protocol.EncodedLen(f)
	}
	if queued := c.pending.Len() + int(c.outLen.Load()); queued+size > c.opts.MaxOutbound {
		c.opts.Observer.MessageDropped("outbound_overflow")
		c.log.Warn().Int("queued", queued).Err(errOutboundOverflow).Msg("dropping message")
		return EnqueueOverflow
	}
	if c.opts.Variant == VariantLine {
		c.pending.Append(payload)
		c.pending.Append(lineFeed)
	} else {
		c.pending.Append(protocol.AppendFrame(make([]byte, 0, size), f))
	}
	c.state = StateRunningAndWriting
	return EnqueueAccepted
}

func (c *Connection) setState(s State) {
	c.qmu.Lock()
	c.state = s
	c.qmu.Unlock()
}

// Acquire takes a reference for an in-flight job.
func (c *Connection) Acquire() {
	c.refs.Add(1)
}

// Release drops a reference. The socket is closed when the last one goes.
func (c *Connection) Release() {
	if c.refs.Add(-1) == 0 {
		if err := c.stream.Close(); err != nil {
			c.log.Debug().Err(err).Msg("socket close")
		}
	}
}

// Refs returns the current reference count.
func (c *Connection) Refs() int32 { return c.refs.Load() }

// MarkClosed flags the connection so pending and future handler runs return
// early. It reports whether this call did the transition.
func (c *Connection) MarkClosed() bool {
	return !c.closed.Swap(true)
}

// Closed reports whether MarkClosed was called.
func (c *Connection) Closed() bool { return c.closed.Load() }

// HandleReadable runs the read handler. It must be called by at most one
// job at a time, which the one-shot registration guarantees.
func (c *Connection) HandleReadable() {
	c.run(EventReadable)
}

// HandleWritable runs the write handler.
func (c *Connection) HandleWritable() {
	c.run(EventWritable)
}

func (c *Connection) run(ev Event) {
	out, ok := c.handle(ev)
	if !ok {
		return
	}
	if out.close {
		c.poster.Post(Close(c.id, out.reason))
		return
	}
	c.poster.Post(Rearm(c.id))
}

func (c *Connection) handle(ev Event) (outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return outcome{}, false
	}
	state := c.State()
	switch ev {
	case EventReadable:
		switch state {
		case StateAwaitingHandshake:
			return c.readHandshake(), true
		case StateRunning, StateRunningAndWriting:
			return c.readRunning(), true
		}
	case EventWritable:
		switch state {
		case StateHandshakeResponse:
			return c.writeHandshake(), true
		case StateRunningAndWriting:
			return c.writeRunning(), true
		case StateRunning:
			if c.hasPending() {
				return c.writeRunning(), true
			}
		}
	}
	c.log.Warn().Err(&EventError{ID: c.id, State: state, Event: ev}).Msg("unexpected event")
	return rearm, true
}

// readRunning handles a readable event after the handshake.
func (c *Connection) readRunning() outcome {
	if c.opts.Variant == VariantLine {
		return c.readLoop(c.processLines)
	}
	return c.readLoop(c.processFrames)
}

// readLoop reads until the socket would block, handing each chunk to process.
// process returns a non-nil outcome to stop reading.
func (c *Connection) readLoop(process func() *outcome) outcome {
	scratch := c.opts.ReadPool.Get()
	defer c.opts.ReadPool.Put(scratch)
	for {
		n, err := c.stream.Read(scratch)
		if n > 0 {
			c.opts.Observer.BytesIn(n)
			c.inbound.Append(scratch[:n])
			if out := process(); out != nil {
				return *out
			}
			if c.inbound.Len() > c.opts.MaxInbound {
				c.log.Warn().Int("buffered", c.inbound.Len()).Err(errInboundOverflow).Msg("closing connection")
				return closeWith(ReasonResourceExhausted)
			}
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, api.ErrWouldBlock):
			return rearm
		case errors.Is(err, api.ErrInterrupted):
			continue
		case errors.Is(err, io.EOF):
			// No more data for now; a peer hangup is reported separately.
			return rearm
		default:
			c.log.Debug().Err(err).Msg("read failed")
			return closeWith(ReasonTransportError)
		}
	}
}

// flush writes outbound, then anything pending, until both are empty or the
// socket would block. Short writes are retried immediately.
func (c *Connection) flush() error {
	for {
		for c.outbound.Len() > 0 {
			n, err := c.stream.Write(c.outbound.Bytes())
			if n > 0 {
				c.outbound.Drain(n)
				c.outLen.Store(int64(c.outbound.Len()))
				c.opts.Observer.BytesOut(n)
			}
			switch {
			case err == nil:
			case errors.Is(err, api.ErrWouldBlock):
				return nil
			case errors.Is(err, api.ErrInterrupted):
			default:
				return err
			}
		}
		c.qmu.Lock()
		if c.pending.Len() == 0 {
			if c.state == StateRunningAndWriting {
				c.state = StateRunning
			}
			c.qmu.Unlock()
			return nil
		}
		c.outbound.Append(c.pending.Bytes())
		c.outLen.Store(int64(c.outbound.Len()))
		c.pending.Reset()
		c.qmu.Unlock()
	}
}

func (c *Connection) hasPending() bool {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return c.pending.Len() > 0
}

func (c *Connection) writeRunning() outcome {
	if err := c.flush(); err != nil {
		c.log.Debug().Err(err).Msg("write failed")
		return closeWith(ReasonTransportError)
	}
	return rearm
}

// flushAndClose makes one best-effort attempt to send what is queued and then
// requests the close.
func (c *Connection) flushAndClose(reason string) *outcome {
	if err := c.flush(); err != nil {
		c.log.Debug().Err(err).Msg("final flush failed")
	}
	out := closeWith(reason)
	return &out
}

// Buffered returns the number of inbound, outbound and pending bytes.
func (c *Connection) Buffered() (inbound, outbound, pending int) {
	c.mu.Lock()
	inbound, outbound = c.inbound.Len(), c.outbound.Len()
	c.mu.Unlock()
	c.qmu.Lock()
	pending = c.pending.Len()
	c.qmu.Unlock()
	return
}
