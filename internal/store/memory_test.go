// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/hoshiko-dev/catalogus/internal/models/anilist"
)

func TestUpsertMediaDoesNotStamp(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.UpsertMedia(ctx, []anilist.Media{{ID: 1, Kind: anilist.KindAnime}}); err != nil {
		t.Fatal(err)
	}

	refs, err := s.MediaRefs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 {
		t.Fatalf("refs = %d, want 1", len(refs))
	}
	if !refs[0].LastSynced.IsZero() {
		t.Errorf("LastSynced = %v, want zero after a plain upsert", refs[0].LastSynced)
	}
}

func TestMergeMediaCharactersUnionsAndStamps(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	m := anilist.Media{ID: 5, Kind: anilist.KindAnime}
	if err := s.MergeMediaCharacters(ctx, m, []int{1, 2}, now); err != nil {
		t.Fatal(err)
	}
	if err := s.MergeMediaCharacters(ctx, m, []int{2, 3}, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if got := s.MediaCharacterIDs(5); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("character ids = %v, want [1 2 3]", got)
	}

	refs, err := s.MediaRefs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !refs[0].LastSynced.Equal(now.Add(time.Hour)) {
		t.Errorf("LastSynced = %v, want the latest merge time", refs[0].LastSynced)
	}
}

func TestMergeCharacterEdges(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	first := anilist.CharacterEdge{CharacterID: 7, MediaID: 55, Role: anilist.RoleMain, VoiceActorIDs: []int{9}}
	second := anilist.CharacterEdge{CharacterID: 7, MediaID: 55, Role: anilist.RoleSupporting, VoiceActorIDs: []int{10}}
	if err := s.MergeCharacterEdges(ctx, []anilist.CharacterEdge{first}); err != nil {
		t.Fatal(err)
	}
	if err := s.MergeCharacterEdges(ctx, []anilist.CharacterEdge{second}); err != nil {
		t.Fatal(err)
	}

	role, vas, ok := s.Edge(7, 55)
	if !ok {
		t.Fatal("edge (7, 55) not found")
	}
	if role != anilist.RoleSupporting {
		t.Errorf("role = %q, want the latest observed value", role)
	}
	if !reflect.DeepEqual(vas, []int{9, 10}) {
		t.Errorf("voice actors = %v, want the union [9 10]", vas)
	}
}

func TestRefsOrderedOldestFirst(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	if err := s.UpsertCharacters(ctx, []anilist.Character{{ID: 1}, {ID: 2}, {ID: 3}}); err != nil {
		t.Fatal(err)
	}
	// Character 3 never synced, 1 synced recently, 2 synced long ago.
	if err := s.TouchCharacters(ctx, []int{1}, base.Add(48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.TouchCharacters(ctx, []int{2}, base); err != nil {
		t.Fatal(err)
	}

	refs, err := s.CharacterRefs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got := []int{refs[0].ID, refs[1].ID, refs[2].ID}
	if !reflect.DeepEqual(got, []int{3, 2, 1}) {
		t.Errorf("ref order = %v, want never-synced first then oldest [3 2 1]", got)
	}
}

func TestReplaceListEntries(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	account := anilist.Account{Username: "alice", Service: anilist.ServiceAniList}

	old := []anilist.ListEntry{{MediaID: 1, Status: anilist.StatusCurrent}, {MediaID: 2, Status: anilist.StatusCurrent}}
	if err := s.ReplaceListEntries(ctx, account, anilist.KindAnime, old); err != nil {
		t.Fatal(err)
	}
	replacement := []anilist.ListEntry{{MediaID: 3, Status: anilist.StatusRepeating}}
	if err := s.ReplaceListEntries(ctx, account, anilist.KindAnime, replacement); err != nil {
		t.Fatal(err)
	}

	entries := s.ListEntries(account, anilist.KindAnime)
	if len(entries) != 1 || entries[0].MediaID != 3 {
		t.Errorf("entries = %+v, want only the replacement entry", entries)
	}
	if manga := s.ListEntries(account, anilist.KindManga); len(manga) != 0 {
		t.Errorf("manga entries = %+v, want untouched empty set", manga)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.UpsertMedia(ctx, []anilist.Media{{ID: 1}, {ID: 2}}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertCharacters(ctx, []anilist.Character{{ID: 10}}); err != nil {
		t.Fatal(err)
	}
	if err := s.MergeCharacterEdges(ctx, []anilist.CharacterEdge{{CharacterID: 10, MediaID: 1}}); err != nil {
		t.Fatal(err)
	}
	account := anilist.Account{Username: "bob", Service: anilist.ServiceMyAnimeList}
	s.AddAccount(account)
	if err := s.ReplaceListEntries(ctx, account, anilist.KindAnime, []anilist.ListEntry{{MediaID: 1}, {MediaID: 2}}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Media: 2, Characters: 1, Edges: 1, Accounts: 1, ListEntries: 2}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
}
