// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package sync

import (
	"sync"

	"github.com/hoshiko-dev/catalogus/internal/models/anilist"
	"github.com/hoshiko-dev/catalogus/internal/store"
)

// idMapper caches the (kind, MyAnimeList id) to native id mapping. It
// is rebuilt from the store at the start of every list cycle and grows
// as remote lookups resolve ids mid-cycle.
type idMapper struct {
	mu     sync.Mutex
	byKind map[anilist.MediaKind]map[int]int
}

func newIDMapper() *idMapper {
	m := &idMapper{byKind: make(map[anilist.MediaKind]map[int]int, len(anilist.MediaKinds))}
	for _, kind := range anilist.MediaKinds {
		m.byKind[kind] = make(map[int]int)
	}
	return m
}

// load replaces the cache with the mapping found in the given media
// rows. Rows without a foreign id are skipped.
func (m *idMapper) load(refs []store.MediaRef) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, kind := range anilist.MediaKinds {
		m.byKind[kind] = make(map[int]int)
	}
	for _, r := range refs {
		if r.IDMal == nil {
			continue
		}
		if kindMap, ok := m.byKind[r.Kind]; ok {
			kindMap[*r.IDMal] = r.ID
		}
	}
}

func (m *idMapper) get(kind anilist.MediaKind, malID int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKind[kind][malID]
	return id, ok
}

func (m *idMapper) put(kind anilist.MediaKind, malID, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kindMap, ok := m.byKind[kind]; ok {
		kindMap[malID] = id
	}
}

// missing returns the subset of malIDs not yet cached for kind, in
// ascending order.
func (m *idMapper) missing(kind anilist.MediaKind, malIDs []int) []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	unknown := make(map[int]struct{})
	for _, malID := range malIDs {
		if _, ok := m.byKind[kind][malID]; !ok {
			unknown[malID] = struct{}{}
		}
	}
	return setKeys(unknown)
}
