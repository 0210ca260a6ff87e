// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

/*
Package sync implements the catalog synchronization engine.

The engine keeps a local catalog of media, characters, and staff
converged with the remote AniList GraphQL service, and keeps per-user
list entries converged with their source-of-truth list providers
(AniList or MyAnimeList).

Components:
  - Gateway: the single quota-limited door to the GraphQL endpoint.
    Tracks the remaining request allowance from response headers, gates
    low-priority callers below a configured headroom threshold, and
    transparently sleeps through 429 windows.
  - Fetcher: batched entity fetches over the Gateway, one relationship
    page at a time, with partial-failure containment for server-side
    errors. Also resolves foreign MyAnimeList ids through a cached
    id map.
  - Scheduler: staleness-driven refresh cycles. Each cycle selects
    never-synced ids plus a bounded fraction of the oldest aged ids,
    walks relationship pages until exhausted, and gap-fills referenced
    entities so the store never holds dangling ids.
  - List providers: per-service adapters that fetch a user's complete
    list and normalize it to canonical entries; MALClient is the
    REST client behind the MyAnimeList adapter.
  - Manager: owns all of the above, runs the fixed cycle order
    (tags, lists, media, characters, staff), and plugs into the
    supervision tree as a suture service.

All remote access flows through the Gateway or MALClient; nothing else
in the process talks to the networks.
*/
package sync
