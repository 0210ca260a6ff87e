// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package anilist

// GraphQL response envelopes. The gateway strips the outer
// {"data": ...} / {"errors": ...} wrapper, so these start at the data
// payload's first key.

// MediaPageData is the payload of a batched media query.
type MediaPageData struct {
	Page struct {
		Media []Media `json:"media"`
	} `json:"Page"`
}

// CharacterPageData is the payload of a batched character query.
type CharacterPageData struct {
	Page struct {
		Characters []Character `json:"characters"`
	} `json:"Page"`
}

// StaffPageData is the payload of a batched staff query.
type StaffPageData struct {
	Page struct {
		Staff []Staff `json:"staff"`
	} `json:"Page"`
}

// TagCollectionData is the payload of the tag collection query.
type TagCollectionData struct {
	MediaTagCollection []MediaTag `json:"MediaTagCollection"`
}

// ListCollectionData is the payload of a user's MediaListCollection
// query. AniList splits entries into named lists; the sync engine
// flattens and deduplicates them.
type ListCollectionData struct {
	MediaListCollection struct {
		Lists []struct {
			Entries []RawListEntry `json:"entries"`
		} `json:"lists"`
	} `json:"MediaListCollection"`
}

// RawListEntry is one AniList list entry as returned on the wire.
type RawListEntry struct {
	Score    float64     `json:"score"`
	Status   EntryStatus `json:"status"`
	Progress int         `json:"progress"`
	Media    IDNode      `json:"media"`
}

// MyAnimeList REST shapes.

// MALListStatus is the per-entry status block of the MAL list endpoint.
// Progress counters are pointers: MAL omits them on some entries.
type MALListStatus struct {
	Status             string `json:"status"`
	Score              int    `json:"score"`
	IsRewatching       *bool  `json:"is_rewatching"`
	IsRereading        *bool  `json:"is_rereading"`
	NumEpisodesWatched *int   `json:"num_episodes_watched"`
	NumChaptersRead    *int   `json:"num_chapters_read"`
}

// MALListItem is one entry of a MAL list page.
type MALListItem struct {
	Node       IDNode        `json:"node"`
	ListStatus MALListStatus `json:"list_status"`
}

// MALListPage is one page of the MAL list endpoint. Paging.Next is
// null on the final page.
type MALListPage struct {
	Data   []MALListItem `json:"data"`
	Paging struct {
		Previous *string `json:"previous"`
		Next     *string `json:"next"`
	} `json:"paging"`
}
