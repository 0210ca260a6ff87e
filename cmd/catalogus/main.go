// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

// Package main is the entry point for the Catalogus engine.
//
// Catalogus keeps a local anime and manga catalog synchronized against
// the AniList GraphQL API and tracked users' lists on AniList and
// MyAnimeList. The binary wires the pieces together in order:
//
//  1. Configuration: layered load via Koanf v2 (defaults, config file,
//     environment variables)
//  2. Logging: zerolog, json or console per config
//  3. Store: the in-memory catalog store, seeded with tracked accounts
//  4. Sync manager: quota-limited gateway, fetcher, scheduler, and the
//     per-user list providers
//  5. Ops server: healthz, Prometheus metrics, and the status endpoint
//  6. Supervisor tree: both services run under suture with restart
//     backoff
//
// The process shuts down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hoshiko-dev/catalogus/internal/alert"
	"github.com/hoshiko-dev/catalogus/internal/config"
	"github.com/hoshiko-dev/catalogus/internal/logging"
	"github.com/hoshiko-dev/catalogus/internal/models/anilist"
	"github.com/hoshiko-dev/catalogus/internal/server"
	"github.com/hoshiko-dev/catalogus/internal/store"
	"github.com/hoshiko-dev/catalogus/internal/supervisor"
	"github.com/hoshiko-dev/catalogus/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "catalogus: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("anilist_url", cfg.AniList.URL).
		Dur("interval", cfg.Sync.Interval).
		Int("accounts", len(cfg.Accounts)).
		Msg("starting catalogus")

	st := store.NewMemoryStore()
	for _, acct := range cfg.Accounts {
		st.AddAccount(anilist.Account{
			Username: acct.Username,
			Service:  anilist.ListService(acct.Service),
		})
	}

	notifier := alert.NewNotifier(cfg.Alert.WebhookURL)
	manager := sync.NewManager(cfg, st, notifier)
	if cfg.AniList.HighPriority {
		logging.Warn().Msg("low-priority gate disabled, engine runs at interactive priority")
		manager.Gateway().SetLowPriorityThreshold(0)
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(manager)
	tree.AddOpsService(server.New(cfg.Server, st, manager.Gateway()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
	}

	logging.Info().Msg("catalogus stopped")
	return nil
}
