// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

/*
server.go - Operational HTTP Server

Serves the engine's operational surface: liveness, Prometheus metrics,
and a status endpoint reporting the remaining request quota and catalog
row counts. The server runs as a supervised service and shuts down
gracefully when its context is canceled.
*/
//nolint:staticcheck // File documentation, not package doc
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hoshiko-dev/catalogus/internal/config"
	"github.com/hoshiko-dev/catalogus/internal/logging"
	"github.com/hoshiko-dev/catalogus/internal/store"
)

const shutdownTimeout = 5 * time.Second

// QuotaReporter exposes the gateway's remaining request quota.
type QuotaReporter interface {
	Remaining() int
}

// Server is the operational HTTP endpoint.
type Server struct {
	addr  string
	store store.Store
	quota QuotaReporter
}

// New builds the ops server. quota may be nil when no gateway is wired.
func New(cfg config.ServerConfig, st store.Store, quota QuotaReporter) *Server {
	return &Server{
		addr:  net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		store: st,
		quota: quota,
	}
}

// Routes builds the chi handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Serve runs the HTTP server until ctx is canceled. Implements
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("ops server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops server shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ops server: %w", err)
	}
}

// String implements suture's service naming.
func (s *Server) String() string {
	return "ops-server"
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	QuotaRemaining *int        `json:"quota_remaining,omitempty"`
	Catalog        store.Stats `json:"catalog"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
		return
	}

	resp := statusResponse{Catalog: stats}
	if s.quota != nil {
		remaining := s.quota.Remaining()
		resp.QuotaRemaining = &remaining
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("encoding ops response")
	}
}
