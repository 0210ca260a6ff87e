// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hoshiko-dev/catalogus/internal/models/anilist"
)

// edgeKey identifies one character↔media relationship.
type edgeKey struct {
	CharacterID int
	MediaID     int
}

// listKey identifies one account's entry set for one media kind.
type listKey struct {
	Username string
	Service  anilist.ListService
	Kind     anilist.MediaKind
}

// storedEdge is the merged state of one relationship edge.
type storedEdge struct {
	Role        anilist.CharacterRole
	VoiceActors map[int]struct{}
}

// MemoryStore is a complete in-memory Store implementation with real
// merge semantics. It is the default collaborator for the binary and
// the behavioural double for tests.
type MemoryStore struct {
	mu sync.RWMutex

	media      map[int]anilist.Media
	characters map[int]anilist.Character
	staff      map[int]anilist.Staff

	mediaSynced     map[int]time.Time
	characterSynced map[int]time.Time
	staffSynced     map[int]time.Time

	mediaCharacters map[int]map[int]struct{}
	edges           map[edgeKey]*storedEdge
	tags            map[int]anilist.MediaTag

	accounts []anilist.Account
	lists    map[listKey][]anilist.ListEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		media:           make(map[int]anilist.Media),
		characters:      make(map[int]anilist.Character),
		staff:           make(map[int]anilist.Staff),
		mediaSynced:     make(map[int]time.Time),
		characterSynced: make(map[int]time.Time),
		staffSynced:     make(map[int]time.Time),
		mediaCharacters: make(map[int]map[int]struct{}),
		edges:           make(map[edgeKey]*storedEdge),
		tags:            make(map[int]anilist.MediaTag),
		lists:           make(map[listKey][]anilist.ListEntry),
	}
}

// MediaRefs returns all media refs ordered by oldest LastSynced first.
func (s *MemoryStore) MediaRefs(_ context.Context) ([]MediaRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make([]MediaRef, 0, len(s.media))
	for id, m := range s.media {
		refs = append(refs, MediaRef{
			ID:         id,
			IDMal:      m.IDMal,
			Kind:       m.Kind,
			LastSynced: s.mediaSynced[id],
		})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].LastSynced.Equal(refs[j].LastSynced) {
			return refs[i].ID < refs[j].ID
		}
		return refs[i].LastSynced.Before(refs[j].LastSynced)
	})
	return refs, nil
}

// CharacterRefs returns all character refs ordered by oldest LastSynced first.
func (s *MemoryStore) CharacterRefs(_ context.Context) ([]EntityRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entityRefs(s.characters, s.characterSynced), nil
}

// StaffRefs returns all staff refs ordered by oldest LastSynced first.
func (s *MemoryStore) StaffRefs(_ context.Context) ([]EntityRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entityRefs(s.staff, s.staffSynced), nil
}

// entityRefs builds the sorted ref slice for a keyed entity map.
func entityRefs[T any](entities map[int]T, synced map[int]time.Time) []EntityRef {
	refs := make([]EntityRef, 0, len(entities))
	for id := range entities {
		refs = append(refs, EntityRef{ID: id, LastSynced: synced[id]})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].LastSynced.Equal(refs[j].LastSynced) {
			return refs[i].ID < refs[j].ID
		}
		return refs[i].LastSynced.Before(refs[j].LastSynced)
	})
	return refs
}

// UpsertMedia creates or updates media without touching LastSynced.
func (s *MemoryStore) UpsertMedia(_ context.Context, media []anilist.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range media {
		m.Characters = nil // relationship state lives in mediaCharacters
		s.media[m.ID] = m
	}
	return nil
}

// MergeMediaCharacters merges one media, unions its character id set,
// and stamps LastSynced.
func (s *MemoryStore) MergeMediaCharacters(_ context.Context, media anilist.Media, characterIDs []int, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	media.Characters = nil
	s.media[media.ID] = media

	set := s.mediaCharacters[media.ID]
	if set == nil {
		set = make(map[int]struct{}, len(characterIDs))
		s.mediaCharacters[media.ID] = set
	}
	for _, id := range characterIDs {
		set[id] = struct{}{}
	}

	s.mediaSynced[media.ID] = syncedAt
	return nil
}

// UpsertCharacters creates or updates characters without touching LastSynced.
func (s *MemoryStore) UpsertCharacters(_ context.Context, characters []anilist.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range characters {
		c.Media = nil // relationship state lives in edges
		s.characters[c.ID] = c
	}
	return nil
}

// UpsertStaff creates or updates staff without touching LastSynced.
func (s *MemoryStore) UpsertStaff(_ context.Context, staff []anilist.Staff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range staff {
		st.Characters = nil
		s.staff[st.ID] = st
	}
	return nil
}

// MergeCharacterEdges merges edges additively: voice-actor sets are
// unioned, the role takes the latest observed value.
func (s *MemoryStore) MergeCharacterEdges(_ context.Context, edges []anilist.CharacterEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range edges {
		key := edgeKey{CharacterID: e.CharacterID, MediaID: e.MediaID}
		existing := s.edges[key]
		if existing == nil {
			existing = &storedEdge{VoiceActors: make(map[int]struct{}, len(e.VoiceActorIDs))}
			s.edges[key] = existing
		}
		existing.Role = e.Role
		for _, va := range e.VoiceActorIDs {
			existing.VoiceActors[va] = struct{}{}
		}
	}
	return nil
}

// TouchCharacters stamps LastSynced for the given character ids.
func (s *MemoryStore) TouchCharacters(_ context.Context, ids []int, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.characterSynced[id] = syncedAt
	}
	return nil
}

// TouchStaff stamps LastSynced for the given staff ids.
func (s *MemoryStore) TouchStaff(_ context.Context, ids []int, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.staffSynced[id] = syncedAt
	}
	return nil
}

// UpsertTags creates or updates the tag collection.
func (s *MemoryStore) UpsertTags(_ context.Context, tags []anilist.MediaTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tags {
		s.tags[t.ID] = t
	}
	return nil
}

// Accounts returns all tracked accounts.
func (s *MemoryStore) Accounts(_ context.Context) ([]anilist.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]anilist.Account, len(s.accounts))
	copy(out, s.accounts)
	return out, nil
}

// AddAccount registers a tracked account.
func (s *MemoryStore) AddAccount(account anilist.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append(s.accounts, account)
}

// ReplaceListEntries atomically replaces the entry set for one
// (account, kind) pair.
func (s *MemoryStore) ReplaceListEntries(_ context.Context, account anilist.Account, kind anilist.MediaKind, entries []anilist.ListEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]anilist.ListEntry, len(entries))
	copy(stored, entries)
	s.lists[listKey{Username: account.Username, Service: account.Service, Kind: kind}] = stored
	return nil
}

// Stats returns catalog row counts.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Media:      len(s.media),
		Characters: len(s.characters),
		Staff:      len(s.staff),
		Tags:       len(s.tags),
		Edges:      len(s.edges),
		Accounts:   len(s.accounts),
	}
	for _, entries := range s.lists {
		st.ListEntries += len(entries)
	}
	return st, nil
}

// Inspection helpers for tests and the ops endpoint.

// Media returns the stored media for id, if present.
func (s *MemoryStore) Media(id int) (anilist.Media, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.media[id]
	return m, ok
}

// Character returns the stored character for id, if present.
func (s *MemoryStore) Character(id int) (anilist.Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.characters[id]
	return c, ok
}

// Staff returns the stored staff for id, if present.
func (s *MemoryStore) Staff(id int) (anilist.Staff, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.staff[id]
	return st, ok
}

// Edge returns the merged role and voice-actor set for one
// (character, media) pair.
func (s *MemoryStore) Edge(characterID, mediaID int) (anilist.CharacterRole, []int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[edgeKey{CharacterID: characterID, MediaID: mediaID}]
	if !ok {
		return "", nil, false
	}
	vas := make([]int, 0, len(e.VoiceActors))
	for va := range e.VoiceActors {
		vas = append(vas, va)
	}
	sort.Ints(vas)
	return e.Role, vas, true
}

// MediaCharacterIDs returns the merged character id set of one media.
func (s *MemoryStore) MediaCharacterIDs(mediaID int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.mediaCharacters[mediaID]))
	for id := range s.mediaCharacters[mediaID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ListEntries returns the stored entry set for one (account, kind) pair.
func (s *MemoryStore) ListEntries(account anilist.Account, kind anilist.MediaKind) []anilist.ListEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.lists[listKey{Username: account.Username, Service: account.Service, Kind: kind}]
	out := make([]anilist.ListEntry, len(entries))
	copy(out, entries)
	return out
}

// Tag returns the stored tag for id, if present.
func (s *MemoryStore) Tag(id int) (anilist.MediaTag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tags[id]
	return t, ok
}

// interface guard
var _ Store = (*MemoryStore)(nil)
