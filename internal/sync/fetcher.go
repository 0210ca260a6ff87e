// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

/*
fetcher.go - Batched Entity Fetches

The Fetcher turns id sets into entity payloads over the Gateway, one
relationship page at a time.

Batch semantics:
  - Ids are queried in batches of at most the configured size (the
    provider caps batched id filters at 50).
  - A batch that fails with an HTTP 5xx is logged and skipped; the
    remaining batches still run. The skipped ids keep their old
    staleness marker and are picked up again on a later cycle.
  - Ids the provider does not return are logged as not found. They are
    never treated as an error.

Page semantics:
  - Page 1 requests the full entity field set.
  - Later pages request the id plus the relationship connection only;
    the entity payload was already captured on page one.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"slices"

	"github.com/goccy/go-json"

	"github.com/hoshiko-dev/catalogus/internal/logging"
	"github.com/hoshiko-dev/catalogus/internal/models/anilist"
	"github.com/hoshiko-dev/catalogus/internal/store"
)

// Fetcher loads catalog entities in batches through the quota gateway.
type Fetcher struct {
	gw        *Gateway
	batchSize int
	idmap     *idMapper
}

// NewFetcher creates a Fetcher with the given batch size.
func NewFetcher(gw *Gateway, batchSize int) *Fetcher {
	return &Fetcher{
		gw:        gw,
		batchSize: batchSize,
		idmap:     newIDMapper(),
	}
}

// FetchMedia fetches the given media ids with one page of their
// character id nodes.
func (f *Fetcher) FetchMedia(ctx context.Context, ids []int, page int) ([]anilist.Media, error) {
	return fetchEntities(ctx, f, ids, page, mediaQuery(page), "media",
		func(data json.RawMessage) ([]anilist.Media, error) {
			var payload anilist.MediaPageData
			if err := json.Unmarshal(data, &payload); err != nil {
				return nil, err
			}
			return payload.Page.Media, nil
		},
		func(m anilist.Media) int { return m.ID })
}

// FetchCharacters fetches the given character ids with one page of
// their media edges.
func (f *Fetcher) FetchCharacters(ctx context.Context, ids []int, page int) ([]anilist.Character, error) {
	return fetchEntities(ctx, f, ids, page, characterQuery(page), "characters",
		func(data json.RawMessage) ([]anilist.Character, error) {
			var payload anilist.CharacterPageData
			if err := json.Unmarshal(data, &payload); err != nil {
				return nil, err
			}
			return payload.Page.Characters, nil
		},
		func(c anilist.Character) int { return c.ID })
}

// FetchStaff fetches the given staff ids with one page of their
// character id nodes.
func (f *Fetcher) FetchStaff(ctx context.Context, ids []int, page int) ([]anilist.Staff, error) {
	return fetchEntities(ctx, f, ids, page, staffQuery(page), "staff",
		func(data json.RawMessage) ([]anilist.Staff, error) {
			var payload anilist.StaffPageData
			if err := json.Unmarshal(data, &payload); err != nil {
				return nil, err
			}
			return payload.Page.Staff, nil
		},
		func(s anilist.Staff) int { return s.ID })
}

// FetchTags fetches the site-wide tag collection.
func (f *Fetcher) FetchTags(ctx context.Context) ([]anilist.MediaTag, error) {
	data, err := f.gw.Do(ctx, GraphQLRequest{Query: tagQuery()}, CallOptions{LowPriority: true})
	if err != nil {
		return nil, err
	}
	var payload anilist.TagCollectionData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode tag collection: %w", err)
	}
	return payload.MediaTagCollection, nil
}

// RebuildIDMap replaces the foreign-id cache from the store's current
// media rows.
func (f *Fetcher) RebuildIDMap(refs []store.MediaRef) {
	f.idmap.load(refs)
}

// ResolveMALIDs maps MyAnimeList ids to native ids for one media kind.
// Unknown ids are looked up remotely and cached; ids the provider does
// not know stay absent from the result.
func (f *Fetcher) ResolveMALIDs(ctx context.Context, kind anilist.MediaKind, malIDs []int) (map[int]int, error) {
	toFetch := f.idmap.missing(kind, malIDs)

	for batch := range slices.Chunk(toFetch, f.batchSize) {
		req := GraphQLRequest{
			Query:     malIDsQuery,
			Variables: map[string]any{"idMal_in": batch, "type": kind},
		}
		data, err := f.gw.Do(ctx, req, CallOptions{LowPriority: true})
		if err != nil {
			if isNotFound(err) {
				logging.Info().Ints("mal_ids", batch).Msg("fetch: foreign ids unknown to provider")
				continue
			}
			return nil, err
		}

		var payload anilist.MediaPageData
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode id lookup: %w", err)
		}
		for _, m := range payload.Page.Media {
			if m.IDMal != nil {
				f.idmap.put(kind, *m.IDMal, m.ID)
			}
		}
	}

	resolved := make(map[int]int, len(malIDs))
	for _, malID := range malIDs {
		if id, ok := f.idmap.get(kind, malID); ok {
			resolved[malID] = id
		}
	}
	return resolved, nil
}

// fetchEntities runs one query over all batches of ids, containing 5xx
// failures per batch and warning about ids the provider did not return.
func fetchEntities[T any](
	ctx context.Context,
	f *Fetcher,
	ids []int,
	page int,
	query, collection string,
	decode func(json.RawMessage) ([]T, error),
	idOf func(T) int,
) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]T, 0, len(ids))
	for batch := range slices.Chunk(ids, f.batchSize) {
		req := GraphQLRequest{
			Query:     query,
			Variables: map[string]any{"idIn": batch, "page": page},
		}
		data, err := f.gw.Do(ctx, req, CallOptions{LowPriority: true})
		if err != nil {
			if isServerError(err) {
				logging.Err(err).Ints("ids", batch).Str("collection", collection).
					Msg("fetch: batch failed server-side, skipping")
				continue
			}
			return nil, err
		}

		entities, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s page: %w", collection, err)
		}

		notFound := make(map[int]struct{}, len(batch))
		for _, id := range batch {
			notFound[id] = struct{}{}
		}
		for _, e := range entities {
			delete(notFound, idOf(e))
		}
		if len(notFound) > 0 {
			logging.Warn().Ints("ids", setKeys(notFound)).Str("collection", collection).
				Msg("fetch: ids not found")
		}

		out = append(out, entities...)
	}
	return out, nil
}

// setKeys returns the keys of an id set in ascending order.
func setKeys(set map[int]struct{}) []int {
	keys := make([]int, 0, len(set))
	for id := range set {
		keys = append(keys, id)
	}
	slices.Sort(keys)
	return keys
}
