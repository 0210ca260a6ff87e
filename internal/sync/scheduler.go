// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

/*
scheduler.go - Staleness-Driven Refresh Cycles

One refresh cycle per collection (media, characters, staff). Each cycle:

 1. Selects refresh candidates: every never-synced id, plus those of
    the oldest len(all)/divisor ids whose last sync is older than the
    staleness horizon. The divisor bounds cycle cost on large catalogs.
 2. Walks relationship pages: selected ids are re-queried with an
    incrementing page number until no id reports a further page.
    Relationship ids accumulate across pages; an entity is merged and
    stamped only once its relationship walk is complete.
 3. Gap-fills: ids referenced by relationships but absent from the
    store are fetched (first page, full fields) and merged without a
    staleness stamp, so the next cycle still treats them as never
    synced and completes their relationship walk.

A candidate that the provider drops mid-walk (not found, or its batch
failed server-side) simply falls out of the working set; its unchanged
staleness marker re-nominates it on a later cycle.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hoshiko-dev/catalogus/internal/config"
	"github.com/hoshiko-dev/catalogus/internal/logging"
	"github.com/hoshiko-dev/catalogus/internal/metrics"
	"github.com/hoshiko-dev/catalogus/internal/models/anilist"
	"github.com/hoshiko-dev/catalogus/internal/store"
)

// Scheduler drives the staleness-based refresh cycles against the
// store.
type Scheduler struct {
	store   store.Store
	fetcher *Fetcher
	cfg     config.SyncConfig
	now     func() time.Time
}

// NewScheduler creates a Scheduler over the given store and fetcher.
func NewScheduler(st store.Store, fetcher *Fetcher, cfg config.SyncConfig) *Scheduler {
	return &Scheduler{
		store:   st,
		fetcher: fetcher,
		cfg:     cfg,
		now:     time.Now,
	}
}

// staleSelection picks the refresh candidates from refs: all
// never-synced ids, plus aged ids from the oldest len(refs)/divisor
// refs. refs must be ordered oldest first, which the store guarantees.
func (s *Scheduler) staleSelection(refs []store.EntityRef, divisor int) map[int]struct{} {
	selected := make(map[int]struct{})
	aged := make([]store.EntityRef, 0, len(refs))
	for _, r := range refs {
		if r.LastSynced.IsZero() {
			selected[r.ID] = struct{}{}
		} else {
			aged = append(aged, r)
		}
	}

	cutoff := s.now().Add(-s.cfg.StaleAfter)
	limit := len(refs) / divisor
	if limit > len(aged) {
		limit = len(aged)
	}
	for _, r := range aged[:limit] {
		if r.LastSynced.Before(cutoff) {
			selected[r.ID] = struct{}{}
		}
	}
	return selected
}

// RefreshMedia runs one media refresh cycle. Character id sets
// accumulate across relationship pages; a media is merged and stamped
// only when its final page has been seen.
func (s *Scheduler) RefreshMedia(ctx context.Context) error {
	timer := prometheus.NewTimer(metrics.SyncDuration.WithLabelValues("media"))
	defer timer.ObserveDuration()

	refs, err := s.store.MediaRefs(ctx)
	if err != nil {
		return err
	}
	toUpdate := s.staleSelection(mediaEntityRefs(refs), s.cfg.MediaStaleDivisor)

	page := 1
	mediaInfo := make(map[int]anilist.Media)
	mediaCharacters := make(map[int]map[int]struct{})
	for len(toUpdate) > 0 {
		ids := setKeys(toUpdate)
		logging.Info().Int("count", len(ids)).Int("page", page).Msg("refresh: fetching media")

		medias, err := s.fetcher.FetchMedia(ctx, ids, page)
		if err != nil {
			return err
		}
		clear(toUpdate)

		var toMerge []int
		for _, m := range medias {
			if page == 1 {
				mediaInfo[m.ID] = m
			}
			set := mediaCharacters[m.ID]
			if set == nil {
				set = make(map[int]struct{})
				mediaCharacters[m.ID] = set
			}
			if m.Characters != nil {
				for _, n := range m.Characters.Nodes {
					set[n.ID] = struct{}{}
				}
			}
			if m.Characters != nil && m.Characters.PageInfo.HasNextPage {
				toUpdate[m.ID] = struct{}{}
			} else {
				toMerge = append(toMerge, m.ID)
			}
		}

		characters := make(map[int]struct{})
		for _, set := range mediaCharacters {
			for id := range set {
				characters[id] = struct{}{}
			}
		}
		if err := s.refreshMissingCharacters(ctx, characters); err != nil {
			return err
		}

		syncedAt := s.now()
		for _, id := range toMerge {
			full, ok := mediaInfo[id]
			if !ok {
				// Page 1 was skipped for this id; retry next cycle.
				delete(mediaCharacters, id)
				continue
			}
			if err := s.store.MergeMediaCharacters(ctx, full, setKeys(mediaCharacters[id]), syncedAt); err != nil {
				return err
			}
			delete(mediaInfo, id)
			delete(mediaCharacters, id)
			metrics.SyncProcessed.WithLabelValues("media").Inc()
		}

		page++
	}
	return nil
}

// RefreshCharacters runs one character refresh cycle. Edges accumulate
// across relationship pages and are merged in one additive pass at the
// end, after their media and voice-actor endpoints were gap-filled.
func (s *Scheduler) RefreshCharacters(ctx context.Context) error {
	timer := prometheus.NewTimer(metrics.SyncDuration.WithLabelValues("characters"))
	defer timer.ObserveDuration()

	refs, err := s.store.CharacterRefs(ctx)
	if err != nil {
		return err
	}
	toUpdate := s.staleSelection(refs, s.cfg.CharacterStaleDivisor)

	updated := make(map[int]struct{})
	medias := make(map[int]struct{})
	voiceActors := make(map[int]struct{})
	var edges []anilist.CharacterEdge

	page := 1
	for len(toUpdate) > 0 {
		ids := setKeys(toUpdate)
		logging.Info().Int("count", len(ids)).Int("page", page).Msg("refresh: fetching characters")

		charas, err := s.fetcher.FetchCharacters(ctx, ids, page)
		if err != nil {
			return err
		}
		clear(toUpdate)

		for _, c := range charas {
			updated[c.ID] = struct{}{}
			if c.Media == nil {
				continue
			}
			for _, e := range c.Media.Edges {
				medias[e.Node.ID] = struct{}{}
				vas := make([]int, 0, len(e.VoiceActors))
				for _, va := range e.VoiceActors {
					vas = append(vas, va.ID)
					voiceActors[va.ID] = struct{}{}
				}
				edges = append(edges, anilist.CharacterEdge{
					CharacterID:   c.ID,
					MediaID:       e.Node.ID,
					Role:          e.CharacterRole,
					VoiceActorIDs: vas,
				})
			}
			if c.Media.PageInfo.HasNextPage {
				toUpdate[c.ID] = struct{}{}
			}
		}

		if page == 1 {
			if err := s.store.UpsertCharacters(ctx, charas); err != nil {
				return err
			}
		}
		page++
	}

	// Media rows pick up their side of these links on their own cycle.
	if err := s.RefreshMissingMedia(ctx, medias); err != nil {
		return err
	}
	if err := s.refreshMissingStaff(ctx, voiceActors); err != nil {
		return err
	}

	logging.Info().Int("edges", len(edges)).Msg("refresh: merging character edges")
	if err := s.store.MergeCharacterEdges(ctx, edges); err != nil {
		return err
	}
	if err := s.store.TouchCharacters(ctx, setKeys(updated), s.now()); err != nil {
		return err
	}
	metrics.SyncProcessed.WithLabelValues("characters").Add(float64(len(updated)))
	return nil
}

// RefreshStaff runs one staff refresh cycle. A staff member's full
// payload is captured on page one and merged once its character walk
// completes.
func (s *Scheduler) RefreshStaff(ctx context.Context) error {
	timer := prometheus.NewTimer(metrics.SyncDuration.WithLabelValues("staff"))
	defer timer.ObserveDuration()

	refs, err := s.store.StaffRefs(ctx)
	if err != nil {
		return err
	}
	toUpdate := s.staleSelection(refs, s.cfg.StaffStaleDivisor)

	staffInfo := make(map[int]anilist.Staff)
	page := 1
	for len(toUpdate) > 0 {
		ids := setKeys(toUpdate)
		logging.Info().Int("count", len(ids)).Int("page", page).Msg("refresh: fetching staff")

		staffs, err := s.fetcher.FetchStaff(ctx, ids, page)
		if err != nil {
			return err
		}
		clear(toUpdate)

		charas := make(map[int]struct{})
		var toMerge []anilist.Staff
		for _, st := range staffs {
			if st.Characters != nil {
				for _, n := range st.Characters.Nodes {
					charas[n.ID] = struct{}{}
				}
			}
			if st.Characters != nil && st.Characters.PageInfo.HasNextPage {
				if page == 1 {
					staffInfo[st.ID] = st
				}
				toUpdate[st.ID] = struct{}{}
				continue
			}
			if full, ok := staffInfo[st.ID]; ok {
				toMerge = append(toMerge, full)
				delete(staffInfo, st.ID)
			} else {
				toMerge = append(toMerge, st)
			}
		}

		if err := s.refreshMissingCharacters(ctx, charas); err != nil {
			return err
		}
		if len(toMerge) > 0 {
			if err := s.store.UpsertStaff(ctx, toMerge); err != nil {
				return err
			}
			merged := make([]int, 0, len(toMerge))
			for _, st := range toMerge {
				merged = append(merged, st.ID)
			}
			if err := s.store.TouchStaff(ctx, merged, s.now()); err != nil {
				return err
			}
			metrics.SyncProcessed.WithLabelValues("staff").Add(float64(len(toMerge)))
		}
		page++
	}
	return nil
}

// RefreshTags replaces the catalog-wide tag collection.
func (s *Scheduler) RefreshTags(ctx context.Context) error {
	timer := prometheus.NewTimer(metrics.SyncDuration.WithLabelValues("tags"))
	defer timer.ObserveDuration()

	tags, err := s.fetcher.FetchTags(ctx)
	if err != nil {
		return err
	}
	logging.Info().Int("count", len(tags)).Msg("refresh: merging tags")
	if err := s.store.UpsertTags(ctx, tags); err != nil {
		return err
	}
	metrics.SyncProcessed.WithLabelValues("tags").Add(float64(len(tags)))
	return nil
}

// RefreshMissingMedia gap-fills media referenced elsewhere but absent
// from the store. Merged rows are not stamped.
func (s *Scheduler) RefreshMissingMedia(ctx context.Context, wanted map[int]struct{}) error {
	refs, err := s.store.MediaRefs(ctx)
	if err != nil {
		return err
	}
	known := make(map[int]struct{}, len(refs))
	for _, r := range refs {
		known[r.ID] = struct{}{}
	}
	missing := diffKeys(wanted, known)
	if len(missing) == 0 {
		return nil
	}

	logging.Info().Int("count", len(missing)).Msg("refresh: gap-filling media")
	medias, err := s.fetcher.FetchMedia(ctx, missing, 1)
	if err != nil {
		return err
	}
	return s.store.UpsertMedia(ctx, medias)
}

// refreshMissingCharacters gap-fills characters referenced elsewhere
// but absent from the store.
func (s *Scheduler) refreshMissingCharacters(ctx context.Context, wanted map[int]struct{}) error {
	refs, err := s.store.CharacterRefs(ctx)
	if err != nil {
		return err
	}
	known := make(map[int]struct{}, len(refs))
	for _, r := range refs {
		known[r.ID] = struct{}{}
	}
	missing := diffKeys(wanted, known)
	if len(missing) == 0 {
		return nil
	}

	logging.Info().Int("count", len(missing)).Msg("refresh: gap-filling characters")
	charas, err := s.fetcher.FetchCharacters(ctx, missing, 1)
	if err != nil {
		return err
	}
	return s.store.UpsertCharacters(ctx, charas)
}

// refreshMissingStaff gap-fills staff referenced elsewhere but absent
// from the store.
func (s *Scheduler) refreshMissingStaff(ctx context.Context, wanted map[int]struct{}) error {
	refs, err := s.store.StaffRefs(ctx)
	if err != nil {
		return err
	}
	known := make(map[int]struct{}, len(refs))
	for _, r := range refs {
		known[r.ID] = struct{}{}
	}
	missing := diffKeys(wanted, known)
	if len(missing) == 0 {
		return nil
	}

	logging.Info().Int("count", len(missing)).Msg("refresh: gap-filling staff")
	staffs, err := s.fetcher.FetchStaff(ctx, missing, 1)
	if err != nil {
		return err
	}
	return s.store.UpsertStaff(ctx, staffs)
}

// mediaEntityRefs projects media refs down to the generic staleness
// rows used by the selection helper.
func mediaEntityRefs(refs []store.MediaRef) []store.EntityRef {
	out := make([]store.EntityRef, len(refs))
	for i, r := range refs {
		out[i] = store.EntityRef{ID: r.ID, LastSynced: r.LastSynced}
	}
	return out
}

// diffKeys returns the ids in wanted but not in known, ascending.
func diffKeys(wanted, known map[int]struct{}) []int {
	missing := make(map[int]struct{})
	for id := range wanted {
		if _, ok := known[id]; !ok {
			missing[id] = struct{}{}
		}
	}
	return setKeys(missing)
}
