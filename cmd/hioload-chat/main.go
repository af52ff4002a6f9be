// File: cmd/hioload-chat/main.go
// Package main
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hioload-chat runs the epoll-driven chat broadcast server together with its
// admin endpoint (/metrics, /debug/state, /healthz) under a supervisor tree.
// Configuration comes from config.yaml (or CHAT_CONFIG) and CHAT_* variables.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-chat/control"
	"github.com/momentics/hioload-chat/internal/config"
	"github.com/momentics/hioload-chat/internal/logging"
	"github.com/momentics/hioload-chat/internal/supervisor"
	"github.com/momentics/hioload-chat/server"
)

func main() {
	if err := run(); err != nil {
		log := logging.Logger()
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run() error {
	cfg, logCfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logCfg)
	log := logging.Logger()

	metrics := control.NewMetrics()
	hooks := control.NewDebugHooks()
	control.RegisterRuntimeHooks(hooks)

	srv, err := server.New(cfg,
		server.WithLogger(log),
		server.WithMetrics(metrics),
		server.WithDebugHooks(hooks),
	)
	if err != nil {
		return err
	}

	tree := supervisor.New(log, supervisor.Config{ShutdownTimeout: cfg.ShutdownTimeout + time.Second})
	tree.Add(srv)
	if cfg.AdminAddr != "" {
		admin := &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           control.NewAdminRouter(metrics, hooks, srv.Health),
			ReadHeaderTimeout: 5 * time.Second,
		}
		tree.Add(supervisor.NewHTTPService("admin-http", admin, cfg.ShutdownTimeout))
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin endpoint enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}
