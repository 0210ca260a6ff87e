// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

// Package anilist defines the wire and domain models for the AniList
// GraphQL catalog and the MyAnimeList REST list endpoint.
//
// The structs in this package mirror the JSON shapes returned by the two
// remote services. Field sets match the GraphQL fragments issued by
// internal/sync; optional GraphQL fields are pointers so that absent
// values survive a round trip without inventing zero values.
//
// Domain identifiers:
//   - Media, Character and Staff use the AniList-assigned integer id as
//     their natural key.
//   - Media additionally carries the MyAnimeList id when AniList knows
//     it, which is what the id-mapping cache is built from.
package anilist
