// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

/*
gateway.go - Quota-Limited GraphQL Gateway

This file provides the single door through which every AniList GraphQL
request in the process must pass.

Quota tracking:
  - The remaining request allowance is read from X-RateLimit-Remaining
    on every response.
  - An authoritative window reset is read from X-RateLimit-Reset
    (absolute unix seconds, observed with a one-second skew allowance)
    or Retry-After (delta seconds) when the provider sends one.
  - A single background resetter restores the allowance to the
    configured ceiling once no request has been observed for a full
    window. Starting it is idempotent: at most one runs at a time.

Priority classes:
  - Interactive calls spend quota freely.
  - Low-priority calls first take one of two concurrency slots, then
    wait until the remaining allowance is above the configured
    threshold. The slots keep a burst of queued background work from
    overshooting the threshold the moment it reopens.

Throttling:
  - By default a throttled call (either a 429 response or a known
    in-force penalty window) transparently sleeps until the window
    resets and retries; the caller never observes the 429.
  - With FailOnThrottle the call returns a *RateLimitError carrying
    the reset time instead.

Thread Safety: safe for concurrent use; all quota state is guarded by
one mutex and the wait gate is a swap-on-state channel.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/semaphore"

	"github.com/hoshiko-dev/catalogus/internal/config"
	"github.com/hoshiko-dev/catalogus/internal/logging"
	"github.com/hoshiko-dev/catalogus/internal/metrics"
)

const (
	// quotaWindow is the provider's rate-limit window length.
	quotaWindow = 60 * time.Second

	// resetSkew pads an authoritative reset instant by one second; the
	// provider rounds its reset timestamps down.
	resetSkew = time.Second

	// defaultCallTimeout bounds one HTTP round trip unless the caller
	// asks for more.
	defaultCallTimeout = 30 * time.Second

	// lowPrioritySlots bounds how many low-priority calls may be in
	// flight at once.
	lowPrioritySlots = 2

	// maxErrorBodySize limits how much of an error response body is
	// read for diagnostics.
	maxErrorBodySize = 64 * 1024
)

// GraphQLRequest is one GraphQL call: a query document plus its
// variables.
type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// CallOptions selects the priority class and throttling behavior of a
// single gateway call.
type CallOptions struct {
	// LowPriority makes the call wait for quota headroom before
	// spending from the shared allowance.
	LowPriority bool

	// FailOnThrottle returns a *RateLimitError instead of transparently
	// sleeping through the throttle window.
	FailOnThrottle bool

	// Timeout overrides the per-round-trip deadline. Zero means the
	// default.
	Timeout time.Duration
}

// Gateway is the process-wide quota-limited AniList GraphQL client.
type Gateway struct {
	url       string
	client    *http.Client
	rateLimit int
	window    time.Duration
	slots     *semaphore.Weighted

	mu          sync.Mutex
	remaining   int
	resetAt     time.Time
	lastRequest time.Time
	threshold   int
	gateOpen    bool
	ready       chan struct{} // closed while the gate is open
	resetting   bool
}

// NewGateway creates a gateway for the configured endpoint. The gate
// starts open: a fresh process has the full allowance.
func NewGateway(cfg *config.AniListConfig) *Gateway {
	ready := make(chan struct{})
	close(ready)
	return &Gateway{
		url:       cfg.URL,
		client:    &http.Client{},
		rateLimit: cfg.RateLimit,
		window:    quotaWindow,
		slots:     semaphore.NewWeighted(lowPrioritySlots),
		remaining: cfg.RateLimit,
		threshold: cfg.LowPriorityThreshold,
		gateOpen:  true,
		ready:     ready,
	}
}

// Do executes one GraphQL call and returns the raw data payload.
// Transport-level failures are retried with exponential backoff;
// protocol-level failures (HTTP status, GraphQL errors, undecodable
// bodies) are returned to the caller as typed errors.
func (g *Gateway) Do(ctx context.Context, req GraphQLRequest, opts CallOptions) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if opts.LowPriority && g.lowPriorityEnabled() {
		if err := g.slots.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer g.slots.Release(1)
		if err := g.waitReady(ctx); err != nil {
			return nil, err
		}
	}

	var data json.RawMessage
	err = withBackoff(ctx, func() error {
		var callErr error
		data, callErr = g.call(ctx, body, opts)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Remaining reports the last observed remaining allowance.
func (g *Gateway) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining
}

// SetLowPriorityThreshold changes the headroom threshold at runtime.
// Zero disables the low-priority gate entirely.
func (g *Gateway) SetLowPriorityThreshold(threshold int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threshold = threshold
	if g.remaining > g.threshold {
		g.openGateLocked()
	} else {
		g.closeGateLocked()
	}
}

func (g *Gateway) lowPriorityEnabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.threshold > 0
}

// waitReady blocks a low-priority call until the remaining allowance is
// above the threshold.
func (g *Gateway) waitReady(ctx context.Context) error {
	g.mu.Lock()
	ready := g.ready
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	default:
	}

	metrics.LowPriorityWaits.Inc()
	logging.Debug().Msg("gateway: low-priority call waiting for quota headroom")
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call performs one round trip, transparently sleeping through throttle
// windows unless the caller opted out.
func (g *Gateway) call(ctx context.Context, body []byte, opts CallOptions) (json.RawMessage, error) {
	for {
		data, err := g.roundTrip(ctx, body, opts)

		var rl *RateLimitError
		if errors.As(err, &rl) {
			metrics.GatewayRequests.WithLabelValues("throttled").Inc()
			if opts.FailOnThrottle {
				return nil, err
			}
			wait := g.resetIn()
			metrics.ThrottleWaits.Inc()
			logging.Debug().Dur("wait", wait).Msg("gateway: quota exhausted, sleeping until window reset")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		return data, err
	}
}

// roundTrip performs a single HTTP exchange and decodes the GraphQL
// envelope.
func (g *Gateway) roundTrip(ctx context.Context, body []byte, opts CallOptions) (json.RawMessage, error) {
	if until := g.penaltyUntil(); time.Now().Before(until) {
		return nil, &RateLimitError{ResetAt: until}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	g.observeHeaders(resp.Header)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{ResetAt: g.penaltyUntil()}
	}
	if resp.StatusCode != http.StatusOK {
		excerpt := readErrorBody(resp.Body)
		if resp.StatusCode == http.StatusBadRequest {
			logging.Info().Int("status", resp.StatusCode).Str("body", excerpt).Msg("gateway: request rejected")
		}
		metrics.GatewayRequests.WithLabelValues("http_error").Inc()
		return nil, &HTTPError{Status: resp.StatusCode, Body: excerpt}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logging.Error().Str("body", bodyExcerpt(raw)).Msg("gateway: undecodable response")
		metrics.GatewayRequests.WithLabelValues("decode_error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		metrics.GatewayRequests.WithLabelValues("graphql_error").Inc()
		return nil, &GraphQLError{Messages: msgs}
	}

	metrics.GatewayRequests.WithLabelValues("success").Inc()
	return envelope.Data, nil
}

// observeHeaders folds the provider's rate-limit headers into the
// shared quota state.
func (g *Gateway) observeHeaders(h http.Header) {
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			g.setRemaining(n)
		}
	}

	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			g.mu.Lock()
			g.resetAt = time.Unix(sec, 0).Add(resetSkew)
			g.mu.Unlock()
		}
	} else if v := h.Get("Retry-After"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			g.mu.Lock()
			g.resetAt = time.Now().Add(time.Duration(sec) * time.Second)
			g.mu.Unlock()
		}
	}
}

// setRemaining records an observed allowance, flips the low-priority
// gate, and makes sure one window resetter is pending.
func (g *Gateway) setRemaining(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.setRemainingLocked(n)
	g.lastRequest = time.Now()
	if !g.resetting {
		g.resetting = true
		go g.runResetter()
	}
}

func (g *Gateway) setRemainingLocked(n int) {
	logging.Debug().Int("remaining", n).Msg("gateway: quota observed")
	g.remaining = n
	metrics.QuotaRemaining.Set(float64(n))
	if n > g.threshold {
		g.openGateLocked()
	} else {
		g.closeGateLocked()
	}
}

func (g *Gateway) openGateLocked() {
	if !g.gateOpen {
		g.gateOpen = true
		close(g.ready)
	}
}

func (g *Gateway) closeGateLocked() {
	if g.gateOpen {
		g.gateOpen = false
		g.ready = make(chan struct{})
	}
}

// runResetter sleeps until a full window has passed since the last
// observed request, then restores the allowance to the ceiling. New
// requests during the sleep push the deadline forward.
func (g *Gateway) runResetter() {
	for {
		g.mu.Lock()
		deadline := g.lastRequest.Add(g.window)
		g.mu.Unlock()

		wait := time.Until(deadline)
		if wait <= 0 {
			break
		}
		logging.Debug().Dur("wait", wait).Msg("gateway: window resetter sleeping")
		time.Sleep(wait)
	}

	g.mu.Lock()
	g.setRemainingLocked(g.rateLimit)
	g.resetting = false
	g.mu.Unlock()
}

// penaltyUntil returns the end of the last known penalty window.
func (g *Gateway) penaltyUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resetAt
}

// resetIn returns how long to sleep before the window is expected to
// reopen: the authoritative reset if one is in force, otherwise the
// window deadline, never less than a second.
func (g *Gateway) resetIn() time.Duration {
	g.mu.Lock()
	resetAt, last, window := g.resetAt, g.lastRequest, g.window
	g.mu.Unlock()

	if d := time.Until(resetAt); d >= 0 {
		return d
	}
	if d := time.Until(last.Add(window)); d > time.Second {
		return d
	}
	return time.Second
}

// readErrorBody reads a bounded excerpt of a response body for error
// reporting.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return string(body)
}

// bodyExcerpt truncates a raw body for logging.
func bodyExcerpt(b []byte) string {
	const limit = 2048
	if len(b) > limit {
		return string(b[:limit]) + "... (truncated)"
	}
	return string(b)
}
