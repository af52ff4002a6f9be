// File: server/dispatcher.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatcher loop: translates readiness notifications into worker jobs and
// control messages back into registration changes. Everything here runs on
// the goroutine that called Serve.

package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-chat/affinity"
	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/internal/concurrency"
	"github.com/momentics/hioload-chat/internal/session"
)

// maxAcceptFailures bounds consecutive accept errors handled in one round.
// The listener is rearmed afterwards, so pending connections are retried.
const maxAcceptFailures = 16

// Serve binds the listener and runs the dispatcher loop until ctx is
// cancelled. It implements suture.Service. With ReactorCPU set, the calling
// goroutine stays locked to a pinned thread and should exit after Serve.
func (s *Server) Serve(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	if s.cfg.ReactorCPU >= 0 {
		if err := affinity.PinThread(s.cfg.ReactorCPU); err != nil {
			s.log.Warn().Err(err).Int("cpu", s.cfg.ReactorCPU).Msg("dispatcher not pinned")
		}
	}

	poller, err := s.newPoller()
	if err != nil {
		return fmt.Errorf("create poller: %w", err)
	}
	ln, err := s.newListener(s.cfg.ListenAddr)
	if err != nil {
		_ = poller.Close()
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	if err := poller.Register(ln.Fd(), api.ListenerID, api.InterestReadable); err != nil {
		_ = ln.Close()
		_ = poller.Close()
		return fmt.Errorf("register listener: %w", err)
	}
	exec := concurrency.NewExecutor(s.cfg.workers(), s.cfg.QueueSize,
		concurrency.WithExecutorLogger(s.log.With().Str("component", "executor").Logger()))

	s.mu.Lock()
	s.poller = poller
	s.listener = ln
	s.exec = exec
	s.mailbox = concurrency.NewMailbox[session.Message](poller.Wake)
	s.addr = ln.Addr()
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("mode", s.connOpts.Variant.String()).
		Int("workers", exec.NumWorkers()).
		Msg("serving")

	stop := context.AfterFunc(ctx, func() { _ = poller.Wake() })
	defer stop()

	err = s.loop(ctx)
	s.shutdown()
	return err
}

func (s *Server) loop(ctx context.Context) error {
	events := make([]api.ReadyEvent, s.cfg.EventBatch)
	for ctx.Err() == nil {
		n, err := s.poller.Wait(events, -1)
		if err != nil {
			if errors.Is(err, api.ErrInterrupted) {
				continue
			}
			return fmt.Errorf("poller wait: %w", err)
		}
		for _, ev := range events[:n] {
			if ev.ID == api.ListenerID {
				s.accept()
				continue
			}
			s.dispatch(ev)
		}
		s.mailbox.Drain(s.handleMessage)
	}
	return nil
}

// accept drains the listener's accept queue, then rearms it.
func (s *Server) accept() {
	defer s.rearmListener()
	failures := 0
	for {
		stream, err := s.listener.Accept()
		switch {
		case err == nil:
			s.admit(stream)
		case errors.Is(err, api.ErrWouldBlock), errors.Is(err, api.ErrClosed):
			return
		case errors.Is(err, api.ErrInterrupted):
		default:
			s.metrics.AcceptErrors.Inc()
			s.log.Warn().Err(err).Msg("accept failed")
			if failures++; failures >= maxAcceptFailures {
				return
			}
		}
	}
}

func (s *Server) rearmListener() {
	if err := s.poller.Rearm(s.listener.Fd(), api.ListenerID, api.InterestReadable); err != nil {
		s.log.Error().Err(err).Msg("rearm listener")
	}
}

// admit allocates an id for stream, registers it with the poller and inserts
// it into the registry.
func (s *Server) admit(stream api.Stream) {
	s.nextID++
	id := s.nextID
	conn := session.NewConnection(id, stream, s.mailbox, s.connOpts)
	interest := conn.Register()
	if err := s.poller.Register(conn.Fd(), id, interest); err != nil {
		s.log.Warn().Err(err).Uint64("conn_id", uint64(id)).Msg("register failed")
		s.metrics.ConnectionsClosed.WithLabelValues(session.ReasonRegisterFailed).Inc()
		conn.MarkClosed()
		conn.Release()
		return
	}
	s.reg.Insert(conn)
	s.metrics.Accepted()
	s.log.Debug().
		Uint64("conn_id", uint64(id)).
		Str("session", conn.Session().String()).
		Stringer("remote", stream.RemoteAddr()).
		Msg("connection accepted")
}

// dispatch handles one readiness notification for a connection.
func (s *Server) dispatch(ev api.ReadyEvent) {
	h, ok := s.reg.Get(ev.ID)
	if !ok {
		s.log.Debug().Uint64("conn_id", uint64(ev.ID)).Stringer("readiness", ev.Readiness).Msg("event for unknown connection")
		return
	}
	if ev.Readiness&api.Hangup != 0 {
		s.handleClose(ev.ID, session.ReasonHangup)
		return
	}
	if h.InFlight {
		s.log.Warn().Uint64("conn_id", uint64(ev.ID)).Msg("event while job in flight")
		return
	}
	switch {
	case ev.Readiness&api.Writable != 0:
		s.submit(h, h.Conn.HandleWritable)
	case ev.Readiness&api.Readable != 0:
		s.submit(h, h.Conn.HandleReadable)
	default:
		s.rearm(h)
	}
}

// submit hands job to the worker pool. The handle stays in flight until the
// job's rearm or close comes back. A job that panics posts a close instead,
// since its one-shot registration is already spent.
func (s *Server) submit(h *session.Handle, job func()) {
	conn := h.Conn
	mailbox := s.mailbox
	h.InFlight = true
	conn.Acquire()
	err := s.exec.Submit(func() {
		defer conn.Release()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().
					Interface("panic", r).
					Uint64("conn_id", uint64(conn.ID())).
					Msg("handler panicked")
				mailbox.Post(session.Close(conn.ID(), session.ReasonInternalError))
			}
		}()
		job()
	})
	if err == nil {
		return
	}
	h.InFlight = false
	conn.Release()
	s.metrics.ExecutorRejections.Inc()
	s.log.Warn().Err(err).Uint64("conn_id", uint64(conn.ID())).Msg("job rejected")
	s.handleClose(conn.ID(), session.ReasonResourceExhausted)
}

func (s *Server) handleMessage(m session.Message) {
	switch m.Kind {
	case session.MsgRearm:
		s.handleRearm(m.ID)
	case session.MsgClose:
		s.handleClose(m.ID, m.Reason)
	case session.MsgBroadcast:
		s.handleBroadcast(m)
	}
}

// handleRearm ends the job for id and renews its registration with the
// interest derived from the connection's current state. Unknown ids were
// closed while the job ran and are ignored.
func (s *Server) handleRearm(id api.ConnectionID) {
	h, ok := s.reg.Get(id)
	if !ok {
		return
	}
	h.InFlight = false
	s.rearm(h)
}

func (s *Server) rearm(h *session.Handle) {
	id := h.Conn.ID()
	if err := s.poller.Rearm(h.Fd, id, h.Conn.Interest()); err != nil {
		s.log.Warn().Err(err).Uint64("conn_id", uint64(id)).Msg("rearm failed")
		s.handleClose(id, session.ReasonRegisterFailed)
	}
}

// handleClose removes id from the registry and the poller. The socket is
// released once no job holds the connection. Repeated calls are no-ops.
func (s *Server) handleClose(id api.ConnectionID, reason string) {
	h, ok := s.reg.Remove(id)
	if !ok {
		return
	}
	h.Conn.MarkClosed()
	if err := s.poller.Deregister(h.Fd); err != nil {
		s.log.Debug().Err(err).Uint64("conn_id", uint64(id)).Msg("deregister")
	}
	s.metrics.Closed(reason)
	s.log.Debug().
		Uint64("conn_id", uint64(id)).
		Str("session", h.Conn.Session().String()).
		Str("reason", reason).
		Msg("connection closed")
	h.Conn.Release()
}

// handleBroadcast fans m out. Recipients whose job is in flight pick up the
// new writable interest from their own rearm. Recipients that cannot take
// more output are closed.
func (s *Server) handleBroadcast(m session.Message) {
	accepted, overflowed := s.bus.Deliver(m.ID, m.Opcode, m.Payload)
	s.metrics.Broadcast(len(accepted))
	for _, h := range accepted {
		if h.InFlight {
			continue
		}
		s.rearm(h)
	}
	for _, h := range overflowed {
		s.handleClose(h.Conn.ID(), session.ReasonResourceExhausted)
	}
}

// shutdown closes every connection, stops the listener and waits for the
// worker pool to drain.
func (s *Server) shutdown() {
	s.log.Info().Int("connections", s.reg.Len()).Msg("shutting down")
	if err := s.poller.Deregister(s.listener.Fd()); err != nil {
		s.log.Debug().Err(err).Msg("deregister listener")
	}
	if err := s.listener.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close listener")
	}
	for _, h := range s.reg.Snapshot() {
		s.handleClose(h.Conn.ID(), session.ReasonShutdown)
	}
	s.mailbox.Close()

	done := make(chan struct{})
	go func() {
		s.exec.Close()
		close(done)
	}()
	if s.cfg.ShutdownTimeout > 0 {
		t := time.NewTimer(s.cfg.ShutdownTimeout)
		select {
		case <-done:
		case <-t.C:
			s.log.Warn().Dur("timeout", s.cfg.ShutdownTimeout).Msg("workers still running after shutdown timeout")
		}
		t.Stop()
	} else {
		<-done
	}
	s.mailbox.Drain(s.handleMessage)

	if err := s.poller.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close poller")
	}
	s.log.Info().Msg("stopped")
}
