// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package anilist

// ListService identifies which external list-tracking service an
// account lives on.
type ListService string

// Supported list services.
const (
	ServiceAniList     ListService = "ANILIST"
	ServiceMyAnimeList ListService = "MYANIMELIST"
)

// MediaKind distinguishes the two media catalogs AniList exposes.
type MediaKind string

// Media kinds. Every per-account list operation runs once per kind.
const (
	KindAnime MediaKind = "ANIME"
	KindManga MediaKind = "MANGA"
)

// MediaKinds lists all kinds in iteration order.
var MediaKinds = []MediaKind{KindAnime, KindManga}

// EntryStatus is the canonical status vocabulary for list entries.
// Provider-specific vocabularies are mapped onto this set.
type EntryStatus string

// Canonical entry statuses (AniList's MediaListStatus vocabulary).
const (
	StatusCurrent   EntryStatus = "CURRENT"
	StatusCompleted EntryStatus = "COMPLETED"
	StatusPaused    EntryStatus = "PAUSED"
	StatusDropped   EntryStatus = "DROPPED"
	StatusPlanning  EntryStatus = "PLANNING"
	StatusRepeating EntryStatus = "REPEATING"
)

// CharacterRole tags a character's importance within one media.
type CharacterRole string

// Character roles as reported by AniList.
const (
	RoleMain       CharacterRole = "MAIN"
	RoleSupporting CharacterRole = "SUPPORTING"
	RoleBackground CharacterRole = "BACKGROUND"
)

// PageInfo is the pagination envelope AniList attaches to every nested
// relationship collection.
type PageInfo struct {
	CurrentPage int  `json:"currentPage"`
	HasNextPage bool `json:"hasNextPage"`
}

// FuzzyDate is AniList's partial date; any component may be absent.
type FuzzyDate struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
	Day   *int `json:"day"`
}

// MediaTitle holds the title variants AniList tracks per media.
type MediaTitle struct {
	UserPreferred string  `json:"userPreferred"`
	English       *string `json:"english"`
	Native        *string `json:"native"`
}

// CoverImage is the media cover art reference.
type CoverImage struct {
	ExtraLarge string  `json:"extraLarge"`
	Color      *string `json:"color"`
}

// MediaTag is a catalog-wide tag; Rank is only populated when the tag
// appears attached to a media.
type MediaTag struct {
	ID          int     `json:"id"`
	Rank        *int    `json:"rank,omitempty"`
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	IsAdult     *bool   `json:"isAdult,omitempty"`
}

// IDNode is a minimal relationship node carrying only the natural key.
type IDNode struct {
	ID int `json:"id"`
}

// StaffRef is a voice-actor reference on a character edge.
type StaffRef struct {
	ID         int `json:"id"`
	Favourites int `json:"favourites"`
}

// CharacterConnection is a paginated set of character id nodes hanging
// off a media or a staff.
type CharacterConnection struct {
	PageInfo PageInfo `json:"pageInfo"`
	Nodes    []IDNode `json:"nodes"`
}

// MediaEdge links a character to one media, annotated with the
// character's role and the contributing voice actors.
type MediaEdge struct {
	Node          IDNode        `json:"node"`
	CharacterRole CharacterRole `json:"characterRole"`
	VoiceActors   []StaffRef    `json:"voiceActors"`
}

// MediaConnection is the paginated media relationship of a character.
type MediaConnection struct {
	PageInfo PageInfo    `json:"pageInfo"`
	Edges    []MediaEdge `json:"edges"`
}

// Media is one catalog title (anime or manga).
//
// On relationship-only pages (page > 1) every field except ID and
// Characters is absent; consumers must treat scalar fields as valid
// only on page-1 responses.
type Media struct {
	ID          int                  `json:"id"`
	Kind        MediaKind            `json:"type"`
	IDMal       *int                 `json:"idMal"`
	Title       *MediaTitle          `json:"title"`
	Synonyms    []string             `json:"synonyms"`
	Description *string              `json:"description"`
	Status      *string              `json:"status"`
	Season      *string              `json:"season"`
	SeasonYear  *int                 `json:"seasonYear"`
	Episodes    *int                 `json:"episodes"`
	Duration    *int                 `json:"duration"`
	Chapters    *int                 `json:"chapters"`
	CoverImage  *CoverImage          `json:"coverImage"`
	Popularity  *int                 `json:"popularity"`
	IsAdult     *bool                `json:"isAdult"`
	Genres      []string             `json:"genres"`
	Tags        []MediaTag           `json:"tags"`
	Favourites  *int                 `json:"favourites"`
	SiteURL     *string              `json:"siteUrl"`
	Characters  *CharacterConnection `json:"characters"`
}

// CharacterName holds AniList's character name variants.
type CharacterName struct {
	UserPreferred      string   `json:"userPreferred"`
	Alternative        []string `json:"alternative"`
	AlternativeSpoiler []string `json:"alternativeSpoiler"`
	Native             *string  `json:"native"`
}

// Image is a single-size image reference.
type Image struct {
	Large string `json:"large"`
}

// Character is one catalog character. Age is a string because AniList
// reports ranges and approximations ("16-17", "400+").
type Character struct {
	ID          int              `json:"id"`
	Name        *CharacterName   `json:"name"`
	Image       *Image           `json:"image"`
	Description *string          `json:"description"`
	Gender      *string          `json:"gender"`
	DateOfBirth *FuzzyDate       `json:"dateOfBirth"`
	Age         *string          `json:"age"`
	Favourites  *int             `json:"favourites"`
	SiteURL     *string          `json:"siteUrl"`
	Media       *MediaConnection `json:"media"`
}

// StaffName holds AniList's staff name variants.
type StaffName struct {
	UserPreferred string   `json:"userPreferred"`
	Alternative   []string `json:"alternative"`
	Native        *string  `json:"native"`
}

// Staff is one catalog staff member (voice actors included).
type Staff struct {
	ID          int                  `json:"id"`
	Name        *StaffName           `json:"name"`
	Image       *Image               `json:"image"`
	Description *string              `json:"description"`
	Gender      *string              `json:"gender"`
	DateOfBirth *FuzzyDate           `json:"dateOfBirth"`
	DateOfDeath *FuzzyDate           `json:"dateOfDeath"`
	Age         *int                 `json:"age"`
	Favourites  *int                 `json:"favourites"`
	SiteURL     *string              `json:"siteUrl"`
	Characters  *CharacterConnection `json:"characters"`
}

// CharacterEdge is the normalized relationship record merged into the
// store: one (character, media) pair with its role and the set of
// voice-actor ids observed so far.
type CharacterEdge struct {
	CharacterID   int
	MediaID       int
	Role          CharacterRole
	VoiceActorIDs []int
}

// ListEntry is the normalized shape of one entry on a user's list,
// independent of which provider it came from.
type ListEntry struct {
	MediaID  int
	Status   EntryStatus
	Progress int
	Score    float64
}

// Account is one tracked external list account.
type Account struct {
	Username string
	Service  ListService
}
