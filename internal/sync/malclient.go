// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

/*
malclient.go - MyAnimeList REST Client

Pages through a user's complete list with limit/offset windows until
the paging cursor runs out, authenticating with the static
X-MAL-CLIENT-ID credential.

Resilience:
  - One whole-list fetch runs at a time; MAL responds badly to
    concurrent paging over the same credential.
  - Requests are spaced by a token-bucket limiter.
  - A circuit breaker opens after repeated whole-list failures so an
    outage does not burn a cycle retrying every user.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hoshiko-dev/catalogus/internal/config"
	"github.com/hoshiko-dev/catalogus/internal/logging"
	"github.com/hoshiko-dev/catalogus/internal/metrics"
	"github.com/hoshiko-dev/catalogus/internal/models/anilist"
)

// MALClient is the REST client for the MyAnimeList list endpoint.
type MALClient struct {
	baseURL  string
	clientID string
	pageSize int
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]anilist.MALListItem]

	// fetchMu serializes whole-list pagination.
	fetchMu sync.Mutex
}

// NewMALClient creates a MALClient from configuration.
func NewMALClient(cfg *config.MALConfig) *MALClient {
	settings := gobreaker.Settings{
		Name:        "mal",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     120 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("mal: circuit breaker state change")
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	}

	return &MALClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clientID: cfg.ClientID,
		pageSize: cfg.PageSize,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		breaker:  gobreaker.NewCircuitBreaker[[]anilist.MALListItem](settings),
	}
}

// FetchList fetches a user's complete list for one media kind.
func (c *MALClient) FetchList(ctx context.Context, username string, kind anilist.MediaKind) ([]anilist.MALListItem, error) {
	return c.breaker.Execute(func() ([]anilist.MALListItem, error) {
		return c.fetchAll(ctx, username, kind)
	})
}

// fetchAll walks limit/offset pages until the paging cursor runs out.
func (c *MALClient) fetchAll(ctx context.Context, username string, kind anilist.MediaKind) ([]anilist.MALListItem, error) {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	endpoint := fmt.Sprintf("%s/users/%s/%s", c.baseURL, url.PathEscape(username), listPath(kind))

	var items []anilist.MALListItem
	for offset := 0; ; offset += c.pageSize {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := c.fetchPage(ctx, endpoint, offset)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Data...)
		if page.Paging.Next == nil {
			break
		}
	}
	return items, nil
}

// fetchPage fetches one limit/offset window.
func (c *MALClient) fetchPage(ctx context.Context, endpoint string, offset int) (*anilist.MALListPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("fields", "list_status")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-MAL-CLIENT-ID", c.clientID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mal request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var page anilist.MALListPage
	if err := json.Unmarshal(raw, &page); err != nil {
		logging.Error().Str("body", bodyExcerpt(raw)).Msg("mal: undecodable response")
		return nil, fmt.Errorf("decode list page: %w", err)
	}
	return &page, nil
}

// listPath maps a media kind to its MAL list endpoint segment.
func listPath(kind anilist.MediaKind) string {
	if kind == anilist.KindAnime {
		return "animelist"
	}
	return "mangalist"
}

// breakerStateValue encodes a breaker state for the state gauge.
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
