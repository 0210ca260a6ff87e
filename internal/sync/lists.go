// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

/*
lists.go - Per-Service List Providers

A ListProvider fetches one user's complete list for one media kind and
normalizes it to canonical entries (native media id, canonical status,
progress, score).

AniListProvider reads the user's whole MediaListCollection in one
low-priority GraphQL call with an extended deadline, then flattens the
named lists and deduplicates by media id.

MALProvider reads the user's list through the MALClient REST pager,
then translates: MAL status words map to canonical statuses, an active
rewatch or reread overrides the status to REPEATING, and foreign ids
resolve to native ids through the Fetcher's id map. Entries whose id
cannot be resolved are dropped. A whole-list fetch failure is retried a
configured number of times; when all attempts fail the user's refresh
is abandoned for this cycle with no entries, leaving the stored list
untouched.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/hoshiko-dev/catalogus/internal/config"
	"github.com/hoshiko-dev/catalogus/internal/logging"
	"github.com/hoshiko-dev/catalogus/internal/models/anilist"
)

// listCallTimeout extends the per-call deadline for whole-collection
// list queries; large lists are slow to assemble server-side.
const listCallTimeout = 300 * time.Second

// ListProvider fetches a user's complete normalized list for one media
// kind from one external service.
type ListProvider interface {
	Service() anilist.ListService
	FetchEntries(ctx context.Context, username string, kind anilist.MediaKind) ([]anilist.ListEntry, error)
}

// AniListProvider reads user lists from the native GraphQL service.
type AniListProvider struct {
	gw *Gateway
}

// NewAniListProvider creates the native list provider.
func NewAniListProvider(gw *Gateway) *AniListProvider {
	return &AniListProvider{gw: gw}
}

// Service identifies the provider.
func (p *AniListProvider) Service() anilist.ListService {
	return anilist.ServiceAniList
}

// FetchEntries fetches the user's complete list collection for kind and
// flattens it. A media appearing in several named lists keeps its last
// occurrence.
func (p *AniListProvider) FetchEntries(ctx context.Context, username string, kind anilist.MediaKind) ([]anilist.ListEntry, error) {
	req := GraphQLRequest{
		Query: listQuery,
		Variables: map[string]any{
			"username": username,
			"type":     kind,
		},
	}
	data, err := p.gw.Do(ctx, req, CallOptions{LowPriority: true, Timeout: listCallTimeout})
	if err != nil {
		return nil, err
	}

	var payload anilist.ListCollectionData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode list collection: %w", err)
	}

	deduped := make(map[int]anilist.ListEntry)
	for _, list := range payload.MediaListCollection.Lists {
		for _, e := range list.Entries {
			deduped[e.Media.ID] = anilist.ListEntry{
				MediaID:  e.Media.ID,
				Status:   e.Status,
				Progress: e.Progress,
				Score:    e.Score,
			}
		}
	}

	entries := make([]anilist.ListEntry, 0, len(deduped))
	for _, e := range deduped {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].MediaID < entries[j].MediaID })
	return entries, nil
}

// malStatuses maps MAL status words to canonical statuses. Both kinds
// share the table; only the planning/current words differ per kind.
var malStatuses = map[string]anilist.EntryStatus{
	"watching":      anilist.StatusCurrent,
	"reading":       anilist.StatusCurrent,
	"completed":     anilist.StatusCompleted,
	"on_hold":       anilist.StatusPaused,
	"dropped":       anilist.StatusDropped,
	"plan_to_watch": anilist.StatusPlanning,
	"plan_to_read":  anilist.StatusPlanning,
}

// MALProvider reads user lists from the MyAnimeList REST API and
// translates them to canonical entries.
type MALProvider struct {
	client     *MALClient
	fetcher    *Fetcher
	retries    int
	retryDelay time.Duration
}

// NewMALProvider creates the MyAnimeList list provider.
func NewMALProvider(client *MALClient, fetcher *Fetcher, cfg *config.MALConfig) *MALProvider {
	return &MALProvider{
		client:     client,
		fetcher:    fetcher,
		retries:    cfg.FetchRetries,
		retryDelay: time.Second,
	}
}

// Service identifies the provider.
func (p *MALProvider) Service() anilist.ListService {
	return anilist.ServiceMyAnimeList
}

// FetchEntries fetches and translates the user's list for kind. An
// abandoned fetch returns no entries and no error so the caller leaves
// the stored list untouched.
func (p *MALProvider) FetchEntries(ctx context.Context, username string, kind anilist.MediaKind) ([]anilist.ListEntry, error) {
	items, ok := p.fetchWithRetry(ctx, username, kind)
	if !ok {
		return nil, nil
	}

	malIDs := make(map[int]struct{}, len(items))
	for _, item := range items {
		malIDs[item.Node.ID] = struct{}{}
	}
	resolved, err := p.fetcher.ResolveMALIDs(ctx, kind, setKeys(malIDs))
	if err != nil {
		return nil, err
	}

	entries := make([]anilist.ListEntry, 0, len(items))
	for _, item := range items {
		id, found := resolved[item.Node.ID]
		if !found {
			continue
		}
		status, known := malEntryStatus(item.ListStatus, kind)
		if !known {
			logging.Warn().Str("status", item.ListStatus.Status).Int("mal_id", item.Node.ID).
				Msg("mal: unknown list status")
			continue
		}
		entries = append(entries, anilist.ListEntry{
			MediaID:  id,
			Status:   status,
			Progress: malProgress(item.ListStatus, kind),
			Score:    float64(item.ListStatus.Score),
		})
	}
	return entries, nil
}

// fetchWithRetry attempts the whole-list fetch up to the configured
// number of times with a short pause between attempts.
func (p *MALProvider) fetchWithRetry(ctx context.Context, username string, kind anilist.MediaKind) ([]anilist.MALListItem, bool) {
	for attempt := 0; attempt < p.retries; attempt++ {
		items, err := p.client.FetchList(ctx, username, kind)
		if err == nil {
			return items, true
		}
		logging.Err(err).Str("username", username).Str("kind", string(kind)).
			Int("attempt", attempt+1).Msg("mal: list fetch failed")

		select {
		case <-time.After(p.retryDelay):
		case <-ctx.Done():
			return nil, false
		}
	}
	logging.Error().Str("username", username).Str("kind", string(kind)).
		Msg("mal: list refresh abandoned for this cycle")
	return nil, false
}

// malEntryStatus maps one list status to the canonical entry status.
// An active rewatch/reread maps to REPEATING no matter what the raw
// status word says; otherwise the status table decides, and an unknown
// word reports !known.
func malEntryStatus(st anilist.MALListStatus, kind anilist.MediaKind) (anilist.EntryStatus, bool) {
	if malRepeating(st, kind) {
		return anilist.StatusRepeating, true
	}
	status, known := malStatuses[st.Status]
	return status, known
}

// malRepeating reports whether the entry is an active rewatch or
// reread for its kind.
func malRepeating(st anilist.MALListStatus, kind anilist.MediaKind) bool {
	if kind == anilist.KindAnime {
		return st.IsRewatching != nil && *st.IsRewatching
	}
	return st.IsRereading != nil && *st.IsRereading
}

// malProgress picks the kind's progress counter, treating an absent
// counter as zero.
func malProgress(st anilist.MALListStatus, kind anilist.MediaKind) int {
	var n *int
	if kind == anilist.KindAnime {
		n = st.NumEpisodesWatched
	} else {
		n = st.NumChaptersRead
	}
	if n == nil {
		return 0
	}
	return *n
}
