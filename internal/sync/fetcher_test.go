// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/hoshiko-dev/catalogus/internal/models/anilist"
	"github.com/hoshiko-dev/catalogus/internal/store"
)

// newGraphQLServer starts a test server that decodes each GraphQL
// request and delegates to handle, which returns a status code and a
// raw response body.
func newGraphQLServer(t *testing.T, handle func(req GraphQLRequest) (int, string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GraphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		status, body := handle(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

// varInts reads an id list variable out of a decoded request.
func varInts(req GraphQLRequest, name string) []int {
	raw, _ := req.Variables[name].([]any)
	ids := make([]int, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			ids = append(ids, int(f))
		}
	}
	return ids
}

// varInt reads a scalar int variable out of a decoded request.
func varInt(req GraphQLRequest, name string) int {
	f, _ := req.Variables[name].(float64)
	return int(f)
}

// mediaJSON builds a minimal media page payload for the given ids.
func mediaJSON(ids []int) string {
	items := make([]string, 0, len(ids))
	for _, id := range ids {
		items = append(items, fmt.Sprintf(
			`{"id":%d,"type":"ANIME","characters":{"pageInfo":{"currentPage":1,"hasNextPage":false},"nodes":[]}}`, id))
	}
	return `{"Page":{"media":[` + strings.Join(items, ",") + `]}}`
}

func intPtr(n int) *int { return &n }

func boolPtr(b bool) *bool { return &b }

func TestFetchMediaBatching(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newGraphQLServer(t, func(req GraphQLRequest) (int, string) {
		calls.Add(1)
		batch := varInts(req, "idIn")
		if len(batch) > 2 {
			t.Errorf("batch size = %d, want at most 2", len(batch))
		}
		return http.StatusOK, `{"data":` + mediaJSON(batch) + `}`
	})
	defer server.Close()

	f := NewFetcher(newTestGateway(server.URL, 0), 2)
	medias, err := f.FetchMedia(context.Background(), []int{1, 2, 3, 4, 5}, 1)
	if err != nil {
		t.Fatalf("FetchMedia() error = %v", err)
	}
	if len(medias) != 5 {
		t.Errorf("media count = %d, want 5", len(medias))
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestFetchMediaServerErrorContainment(t *testing.T) {
	t.Parallel()

	server := newGraphQLServer(t, func(req GraphQLRequest) (int, string) {
		batch := varInts(req, "idIn")
		for _, id := range batch {
			if id == 3 {
				return http.StatusInternalServerError, `{"error":"boom"}`
			}
		}
		return http.StatusOK, `{"data":` + mediaJSON(batch) + `}`
	})
	defer server.Close()

	f := NewFetcher(newTestGateway(server.URL, 0), 2)
	medias, err := f.FetchMedia(context.Background(), []int{1, 2, 3, 4, 5}, 1)
	if err != nil {
		t.Fatalf("FetchMedia() error = %v, want contained 5xx", err)
	}

	got := make(map[int]bool)
	for _, m := range medias {
		got[m.ID] = true
	}
	// The batch holding id 3 is skipped wholesale; the rest survive.
	for _, id := range []int{1, 2, 5} {
		if !got[id] {
			t.Errorf("media %d missing from result", id)
		}
	}
	if len(medias) != 3 {
		t.Errorf("media count = %d, want 3", len(medias))
	}
}

func TestFetchMediaNotFound(t *testing.T) {
	t.Parallel()

	server := newGraphQLServer(t, func(_ GraphQLRequest) (int, string) {
		return http.StatusOK, `{"data":` + mediaJSON([]int{1}) + `}`
	})
	defer server.Close()

	f := NewFetcher(newTestGateway(server.URL, 0), 50)
	medias, err := f.FetchMedia(context.Background(), []int{1, 2}, 1)
	if err != nil {
		t.Fatalf("FetchMedia() error = %v", err)
	}
	if len(medias) != 1 || medias[0].ID != 1 {
		t.Errorf("media = %v, want just id 1", medias)
	}
}

func TestFetchTags(t *testing.T) {
	t.Parallel()

	server := newGraphQLServer(t, func(req GraphQLRequest) (int, string) {
		if !strings.Contains(req.Query, "MediaTagCollection") {
			t.Errorf("unexpected query: %s", req.Query)
		}
		return http.StatusOK, `{"data":{"MediaTagCollection":[{"id":1,"name":"Iyashikei"},{"id":2,"name":"Josei"}]}}`
	})
	defer server.Close()

	f := NewFetcher(newTestGateway(server.URL, 0), 50)
	tags, err := f.FetchTags(context.Background())
	if err != nil {
		t.Fatalf("FetchTags() error = %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "Iyashikei" {
		t.Errorf("tags = %v, want two named tags", tags)
	}
}

func TestResolveMALIDs(t *testing.T) {
	t.Parallel()

	t.Run("cached ids resolve without a request", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := newGraphQLServer(t, func(_ GraphQLRequest) (int, string) {
			calls.Add(1)
			return http.StatusOK, `{"data":{"Page":{"media":[]}}}`
		})
		defer server.Close()

		f := NewFetcher(newTestGateway(server.URL, 0), 50)
		f.RebuildIDMap([]store.MediaRef{
			{ID: 10, IDMal: intPtr(20), Kind: anilist.KindAnime},
		})

		resolved, err := f.ResolveMALIDs(context.Background(), anilist.KindAnime, []int{20})
		if err != nil {
			t.Fatalf("ResolveMALIDs() error = %v", err)
		}
		if resolved[20] != 10 {
			t.Errorf("resolved[20] = %d, want 10", resolved[20])
		}
		if n := calls.Load(); n != 0 {
			t.Errorf("requests = %d, want 0", n)
		}
	})

	t.Run("unknown ids are looked up once and cached", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := newGraphQLServer(t, func(req GraphQLRequest) (int, string) {
			calls.Add(1)
			if got := varInts(req, "idMal_in"); len(got) != 1 || got[0] != 30 {
				t.Errorf("idMal_in = %v, want [30]", got)
			}
			return http.StatusOK, `{"data":{"Page":{"media":[{"id":11,"idMal":30}]}}}`
		})
		defer server.Close()

		f := NewFetcher(newTestGateway(server.URL, 0), 50)
		for range 2 {
			resolved, err := f.ResolveMALIDs(context.Background(), anilist.KindAnime, []int{30})
			if err != nil {
				t.Fatalf("ResolveMALIDs() error = %v", err)
			}
			if resolved[30] != 11 {
				t.Errorf("resolved[30] = %d, want 11", resolved[30])
			}
		}
		if n := calls.Load(); n != 1 {
			t.Errorf("requests = %d, want 1", n)
		}
	})

	t.Run("kinds do not share mappings", func(t *testing.T) {
		t.Parallel()
		server := newGraphQLServer(t, func(_ GraphQLRequest) (int, string) {
			return http.StatusOK, `{"data":{"Page":{"media":[]}}}`
		})
		defer server.Close()

		f := NewFetcher(newTestGateway(server.URL, 0), 50)
		f.RebuildIDMap([]store.MediaRef{
			{ID: 10, IDMal: intPtr(20), Kind: anilist.KindAnime},
		})

		resolved, err := f.ResolveMALIDs(context.Background(), anilist.KindManga, []int{20})
		if err != nil {
			t.Fatalf("ResolveMALIDs() error = %v", err)
		}
		if _, ok := resolved[20]; ok {
			t.Error("manga lookup resolved through the anime mapping")
		}
	})

	t.Run("provider 404 leaves ids unresolved", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		f := NewFetcher(newTestGateway(server.URL, 0), 50)
		resolved, err := f.ResolveMALIDs(context.Background(), anilist.KindAnime, []int{99})
		if err != nil {
			t.Fatalf("ResolveMALIDs() error = %v", err)
		}
		if len(resolved) != 0 {
			t.Errorf("resolved = %v, want empty", resolved)
		}
	})
}
