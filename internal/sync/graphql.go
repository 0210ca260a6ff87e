// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

/*
graphql.go - GraphQL Query Construction

Shared field fragments and query builders for the AniList GraphQL API.
Entity queries come in two shapes: the first relationship page requests
the full field set, every later page requests the id only, since the
entity payload was already captured on page one and only the
relationship connection still grows.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import "fmt"

const pageInfoFields = `
pageInfo {
    currentPage
    hasNextPage
}`

const baseFields = `
id
favourites
siteUrl`

const mediaFields = baseFields + `
type
idMal
title {
    userPreferred
    english
    native
}
synonyms
description
status
season
seasonYear
episodes
duration
chapters
coverImage {
    extraLarge
    color
}
popularity
isAdult
genres
tags {
    id
    rank
}`

const characterFields = baseFields + `
name {
    userPreferred
    alternative
    alternativeSpoiler
    native
}
image {
    large
}
description(asHtml: true)
gender
dateOfBirth {
    year
    month
    day
}
age`

const staffFields = baseFields + `
name {
    userPreferred
    alternative
    native
}
image {
    large
}
description(asHtml: true)
gender
dateOfBirth {
    year
    month
    day
}
dateOfDeath {
    year
    month
    day
}
age`

const tagFields = `
id
name
description
category
isAdult`

// entityFields returns the full field set on the first relationship
// page and the bare id on every later page.
func entityFields(full string, page int) string {
	if page == 1 {
		return full
	}
	return "id"
}

// mediaQuery fetches a batch of media with one page of their character
// id nodes.
func mediaQuery(page int) string {
	return fmt.Sprintf(`
query ($idIn: [Int], $page: Int) {
    Page {
        media(id_in: $idIn) {
            %s
            characters(page: $page) {
                %s
                nodes {
                    id
                }
            }
        }
    }
}`, entityFields(mediaFields, page), pageInfoFields)
}

// characterQuery fetches a batch of characters with one page of their
// media edges, including Japanese voice actors.
func characterQuery(page int) string {
	return fmt.Sprintf(`
query ($idIn: [Int], $page: Int) {
    Page {
        characters(id_in: $idIn) {
            %s
            media(page: $page) {
                %s
                edges {
                    characterRole
                    node {
                        id
                    }
                    voiceActors(language: JAPANESE) {
                        id
                        favourites
                    }
                }
            }
        }
    }
}`, entityFields(characterFields, page), pageInfoFields)
}

// staffQuery fetches a batch of staff with one page of their character
// id nodes.
func staffQuery(page int) string {
	return fmt.Sprintf(`
query ($idIn: [Int], $page: Int) {
    Page {
        staff(id_in: $idIn) {
            %s
            characters(page: $page) {
                %s
                nodes {
                    id
                }
            }
        }
    }
}`, entityFields(staffFields, page), pageInfoFields)
}

// tagQuery fetches the site-wide tag collection.
func tagQuery() string {
	return fmt.Sprintf(`
query {
    MediaTagCollection {
        %s
    }
}`, tagFields)
}

// listQuery fetches a user's complete list collection for one media
// kind. Entries arrive grouped into named lists; the caller flattens
// and deduplicates them.
const listQuery = `
query ($username: String, $type: MediaType) {
    MediaListCollection(userName: $username, type: $type) {
        lists {
            entries {
                score(format: POINT_10_DECIMAL)
                status
                progress
                media {
                    id
                }
            }
        }
    }
}`

// malIDsQuery resolves foreign MyAnimeList ids to native ids. Only the
// id pair is requested; full entity refresh is the scheduler's job.
const malIDsQuery = `
query ($idMal_in: [Int], $type: MediaType) {
    Page {
        media(idMal_in: $idMal_in, type: $type) {
            id
            idMal
        }
    }
}`
