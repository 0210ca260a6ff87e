// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

/*
manager.go - Sync Manager and Cycle Orchestration

The Manager owns the gateway, fetcher, scheduler, and list providers,
and runs the sync cycle in a fixed order:

	tags, lists, media, characters, staff

Each task is isolated: a failing task is counted, reported to the
failure sink, and the cycle moves on to the next task. List refreshes
run under the merge lock so catalog merges triggered by list gap-fills
never interleave with another list pass.

The Manager is a suture service; the supervisor restarts it if Serve
ever returns with the context still live.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hoshiko-dev/catalogus/internal/alert"
	"github.com/hoshiko-dev/catalogus/internal/config"
	"github.com/hoshiko-dev/catalogus/internal/logging"
	"github.com/hoshiko-dev/catalogus/internal/metrics"
	"github.com/hoshiko-dev/catalogus/internal/models/anilist"
	"github.com/hoshiko-dev/catalogus/internal/store"
)

// Manager owns the sync engine's moving parts and runs the periodic
// cycle.
type Manager struct {
	cfg       *config.Config
	store     store.Store
	gateway   *Gateway
	fetcher   *Fetcher
	scheduler *Scheduler
	providers map[anilist.ListService]ListProvider
	notifier  *alert.Notifier

	// mergeMu keeps list refreshes from interleaving.
	mergeMu sync.Mutex
}

// NewManager wires a complete sync engine over the given store.
func NewManager(cfg *config.Config, st store.Store, notifier *alert.Notifier) *Manager {
	gw := NewGateway(&cfg.AniList)
	fetcher := NewFetcher(gw, cfg.Sync.BatchSize)
	malClient := NewMALClient(&cfg.MAL)

	return &Manager{
		cfg:       cfg,
		store:     st,
		gateway:   gw,
		fetcher:   fetcher,
		scheduler: NewScheduler(st, fetcher, cfg.Sync),
		providers: map[anilist.ListService]ListProvider{
			anilist.ServiceAniList:     NewAniListProvider(gw),
			anilist.ServiceMyAnimeList: NewMALProvider(malClient, fetcher, &cfg.MAL),
		},
		notifier: notifier,
	}
}

// Gateway exposes the quota gateway for in-process interactive callers.
func (m *Manager) Gateway() *Gateway {
	return m.gateway
}

// Serve runs an immediate cycle and then one per configured interval
// until the context is canceled. It implements suture.Service.
func (m *Manager) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", m.cfg.Sync.Interval).Msg("sync: manager started")
	m.RunCycle(ctx)

	ticker := time.NewTicker(m.cfg.Sync.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.RunCycle(ctx)
		case <-ctx.Done():
			logging.Info().Msg("sync: manager stopping")
			return ctx.Err()
		}
	}
}

// String names the service in supervisor logs.
func (m *Manager) String() string {
	return "sync-manager"
}

// RunCycle runs every sync task once, in the fixed order. Task
// failures are reported and do not stop the cycle.
func (m *Manager) RunCycle(ctx context.Context) {
	m.runTask(ctx, "refresh_tags", m.scheduler.RefreshTags)
	m.runTask(ctx, "refresh_lists", m.RefreshLists)
	m.runTask(ctx, "refresh_media", m.scheduler.RefreshMedia)
	m.runTask(ctx, "refresh_characters", m.scheduler.RefreshCharacters)
	m.runTask(ctx, "refresh_staff", m.scheduler.RefreshStaff)
}

// runTask runs one task, counting failures and reporting them to the
// failure sink.
func (m *Manager) runTask(ctx context.Context, name string, fn func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	logging.Info().Str("task", name).Msg("sync: task starting")
	if err := fn(ctx); err != nil {
		metrics.SyncErrors.WithLabelValues(name).Inc()
		m.notifier.ReportError(name, err)
		return
	}
	metrics.SyncLastSuccess.WithLabelValues(name).SetToCurrentTime()
	logging.Info().Str("task", name).Msg("sync: task complete")
}

// RefreshLists refreshes every tracked account's lists under the merge
// lock. The id map is rebuilt from the store first so foreign-id
// resolution starts from the catalog's current state. Per-account
// failures are logged and the pass continues.
func (m *Manager) RefreshLists(ctx context.Context) error {
	m.mergeMu.Lock()
	defer m.mergeMu.Unlock()

	timer := prometheus.NewTimer(metrics.SyncDuration.WithLabelValues("lists"))
	defer timer.ObserveDuration()

	logging.Info().Msg("lists: rebuilding id map")
	refs, err := m.store.MediaRefs(ctx)
	if err != nil {
		return err
	}
	m.fetcher.RebuildIDMap(refs)

	accounts, err := m.store.Accounts(ctx)
	if err != nil {
		return err
	}
	logging.Info().Int("accounts", len(accounts)).Msg("lists: refreshing accounts")

	for _, acct := range accounts {
		provider, ok := m.providers[acct.Service]
		if !ok {
			logging.Warn().Str("service", string(acct.Service)).Str("username", acct.Username).
				Msg("lists: no provider for service")
			continue
		}
		for _, kind := range anilist.MediaKinds {
			if err := m.refreshList(ctx, provider, acct, kind); err != nil {
				logging.Err(err).Str("username", acct.Username).Str("kind", string(kind)).
					Msg("lists: refresh failed")
			}
		}
		logging.Info().Str("username", acct.Username).Msg("lists: account refreshed")
	}
	return nil
}

// refreshList replaces one account's entry set for one kind. An empty
// fetch leaves the stored entries untouched; the replace happens only
// after every referenced media exists in the store.
func (m *Manager) refreshList(ctx context.Context, provider ListProvider, acct anilist.Account, kind anilist.MediaKind) error {
	entries, err := provider.FetchEntries(ctx, acct.Username, kind)
	if err != nil {
		return err
	}
	logging.Info().Str("username", acct.Username).Str("kind", string(kind)).
		Int("entries", len(entries)).Msg("lists: fetched")
	if len(entries) == 0 {
		return nil
	}

	wanted := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		wanted[e.MediaID] = struct{}{}
	}
	if err := m.scheduler.RefreshMissingMedia(ctx, wanted); err != nil {
		return err
	}

	if err := m.store.ReplaceListEntries(ctx, acct, kind, entries); err != nil {
		return err
	}
	metrics.ListEntriesReplaced.WithLabelValues(string(acct.Service)).Add(float64(len(entries)))
	return nil
}
