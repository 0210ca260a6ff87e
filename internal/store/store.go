// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

// Package store defines the persistence collaborator consumed by the
// sync engine.
//
// The engine never talks to a database directly; it drives everything
// through the Store interface, which exposes idempotent upserts keyed
// by natural id, additive relationship merges, and atomic list-entry
// replacement. A complete in-memory implementation (MemoryStore) serves
// as the default collaborator and as the behavioural double in tests.
package store

import (
	"context"
	"time"

	"github.com/hoshiko-dev/catalogus/internal/models/anilist"
)

// MediaRef is the staleness marker row for one media, plus the foreign
// id used to rebuild the id-mapping cache.
type MediaRef struct {
	ID         int
	IDMal      *int
	Kind       anilist.MediaKind
	LastSynced time.Time
}

// EntityRef is the staleness marker row for a character or staff.
type EntityRef struct {
	ID         int
	LastSynced time.Time
}

// Store is the persistence collaborator. All mutating operations are
// idempotent: upserts are keyed by natural id, edge merges are additive
// unions, and list replacement swaps the full entry set for one
// (account, kind) pair atomically.
type Store interface {
	// MediaRefs returns every known media id with its staleness marker,
	// ordered by oldest LastSynced first.
	MediaRefs(ctx context.Context) ([]MediaRef, error)

	// CharacterRefs returns every known character id with its staleness
	// marker, ordered by oldest LastSynced first.
	CharacterRefs(ctx context.Context) ([]EntityRef, error)

	// StaffRefs returns every known staff id with its staleness marker,
	// ordered by oldest LastSynced first.
	StaffRefs(ctx context.Context) ([]EntityRef, error)

	// UpsertMedia creates or updates media by natural id. LastSynced is
	// not touched; gap-fill merges must not look fresh.
	UpsertMedia(ctx context.Context, media []anilist.Media) error

	// MergeMediaCharacters merges one fully-paginated media together
	// with the complete set of character ids observed across its
	// relationship pages, stamping LastSynced in the same operation.
	MergeMediaCharacters(ctx context.Context, media anilist.Media, characterIDs []int, syncedAt time.Time) error

	// UpsertCharacters creates or updates characters by natural id
	// without touching LastSynced.
	UpsertCharacters(ctx context.Context, characters []anilist.Character) error

	// UpsertStaff creates or updates staff by natural id without
	// touching LastSynced.
	UpsertStaff(ctx context.Context, staff []anilist.Staff) error

	// MergeCharacterEdges merges relationship edges: a new (character,
	// media) pair is created, an existing one has its voice-actor set
	// unioned with the incoming set and its role overwritten. The set
	// is never replaced wholesale.
	MergeCharacterEdges(ctx context.Context, edges []anilist.CharacterEdge) error

	// TouchCharacters stamps LastSynced for the given character ids.
	TouchCharacters(ctx context.Context, ids []int, syncedAt time.Time) error

	// TouchStaff stamps LastSynced for the given staff ids.
	TouchStaff(ctx context.Context, ids []int, syncedAt time.Time) error

	// UpsertTags creates or updates the catalog-wide tag collection.
	UpsertTags(ctx context.Context, tags []anilist.MediaTag) error

	// Accounts returns all tracked external list accounts.
	Accounts(ctx context.Context) ([]anilist.Account, error)

	// ReplaceListEntries atomically replaces the full entry set for one
	// (account, kind) pair.
	ReplaceListEntries(ctx context.Context, account anilist.Account, kind anilist.MediaKind, entries []anilist.ListEntry) error

	// Stats returns catalog row counts for operational reporting.
	Stats(ctx context.Context) (Stats, error)
}

// Stats summarizes the catalog contents.
type Stats struct {
	Media       int `json:"media"`
	Characters  int `json:"characters"`
	Staff       int `json:"staff"`
	Tags        int `json:"tags"`
	Edges       int `json:"edges"`
	Accounts    int `json:"accounts"`
	ListEntries int `json:"list_entries"`
}
