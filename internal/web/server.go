// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/beo-intake/pkg/types"
)

const defaultShutdownTimeout = 10 * time.Second

// Server runs the intake front end over HTTP.
type Server struct {
	server          *http.Server
	sessions        *Sessions
	shutdownTimeout time.Duration
	log             zerolog.Logger
}

// NewServer wraps h in an http.Server configured from cfg.
func NewServer(cfg types.ServerConfig, h *Handler, log zerolog.Logger) *Server {
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = defaultShutdownTimeout
	}
	return &Server{
		server: &http.Server{
			Addr:              cfg.Address,
			Handler:           h.Routes(),
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		sessions:        h.sessions,
		shutdownTimeout: shutdown,
		log:             log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully and closes
// every form session.
func (s *Server) Run(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sessions.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("address", s.server.Addr).Msg("starting server")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.sessions.Close()
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	s.sessions.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
