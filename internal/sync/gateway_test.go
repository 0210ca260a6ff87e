// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/hoshiko-dev/catalogus/internal/config"
)

// newTestGateway builds a gateway against a test server with a short
// quota window so resetter behavior is observable in test time.
func newTestGateway(serverURL string, threshold int) *Gateway {
	g := NewGateway(&config.AniListConfig{
		URL:                  serverURL,
		RateLimit:            90,
		LowPriorityThreshold: threshold,
	})
	g.window = 100 * time.Millisecond
	return g
}

func (g *Gateway) gateOpenForTest() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gateOpen
}

// writeData writes a GraphQL data envelope.
func writeData(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"data":` + data + `}`))
}

func TestGatewayDoSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var req GraphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("X-RateLimit-Remaining", "89")
		writeData(w, `{"ok":true}`)
	}))
	defer server.Close()

	g := newTestGateway(server.URL, 70)
	data, err := g.Do(context.Background(), GraphQLRequest{Query: "query { ok }"}, CallOptions{})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("data = %s, want {\"ok\":true}", data)
	}
	if got := g.Remaining(); got != 89 {
		t.Errorf("Remaining() = %d, want 89", got)
	}
}

func TestGatewayLowPriorityGate(t *testing.T) {
	t.Parallel()

	t.Run("gate flips exactly at the threshold", func(t *testing.T) {
		t.Parallel()
		g := newTestGateway("http://unused", 70)
		g.window = time.Hour // keep the resetter out of the way

		g.setRemaining(71)
		if !g.gateOpenForTest() {
			t.Error("gate closed at remaining=71, want open")
		}
		g.setRemaining(70)
		if g.gateOpenForTest() {
			t.Error("gate open at remaining=70, want closed")
		}
	})

	t.Run("low-priority call waits for the window reset", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeData(w, `{}`)
		}))
		defer server.Close()

		g := newTestGateway(server.URL, 70)
		g.setRemaining(10) // closes the gate, arms the resetter

		start := time.Now()
		_, err := g.Do(context.Background(), GraphQLRequest{Query: "{}"}, CallOptions{LowPriority: true})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("low-priority call proceeded after %v, want a full window wait", elapsed)
		}
		if got := g.Remaining(); got != 90 {
			t.Errorf("Remaining() after reset = %d, want 90", got)
		}
	})

	t.Run("interactive call bypasses a closed gate", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeData(w, `{}`)
		}))
		defer server.Close()

		g := newTestGateway(server.URL, 70)
		g.setRemaining(10)

		start := time.Now()
		if _, err := g.Do(context.Background(), GraphQLRequest{Query: "{}"}, CallOptions{}); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("interactive call took %v, want immediate", elapsed)
		}
	})

	t.Run("zero threshold disables the gate", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeData(w, `{}`)
		}))
		defer server.Close()

		g := newTestGateway(server.URL, 70)
		g.window = time.Hour // keep the resetter out of the way
		g.setRemaining(10)   // closes the gate

		g.SetLowPriorityThreshold(0)

		start := time.Now()
		if _, err := g.Do(context.Background(), GraphQLRequest{Query: "{}"}, CallOptions{LowPriority: true}); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("low-priority call took %v after the gate was disabled, want immediate", elapsed)
		}
	})

	t.Run("canceled context abandons the wait", func(t *testing.T) {
		t.Parallel()
		g := newTestGateway("http://unused", 70)
		g.mu.Lock()
		g.closeGateLocked()
		g.lastRequest = time.Now().Add(time.Hour) // keep the gate shut
		g.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := g.Do(ctx, GraphQLRequest{Query: "{}"}, CallOptions{LowPriority: true})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Do() error = %v, want context.DeadlineExceeded", err)
		}
	})
}

func TestGatewayWindowReset(t *testing.T) {
	t.Parallel()

	g := newTestGateway("http://unused", 70)
	g.setRemaining(5)
	if g.gateOpenForTest() {
		t.Fatal("gate open at remaining=5, want closed")
	}

	// A second observation while the resetter sleeps must not spawn
	// another one; the deadline just moves forward.
	time.Sleep(40 * time.Millisecond)
	g.setRemaining(4)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if g.Remaining() == 90 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := g.Remaining(); got != 90 {
		t.Fatalf("Remaining() after window = %d, want 90", got)
	}
	if !g.gateOpenForTest() {
		t.Error("gate closed after window reset, want open")
	}

	g.mu.Lock()
	resetting := g.resetting
	g.mu.Unlock()
	if resetting {
		t.Error("resetter still marked pending after restore")
	}
}

func TestGatewayThrottle(t *testing.T) {
	t.Parallel()

	t.Run("fail fast returns the reset time", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		g := newTestGateway(server.URL, 0)
		before := time.Now()
		_, err := g.Do(context.Background(), GraphQLRequest{Query: "{}"}, CallOptions{FailOnThrottle: true})

		var rl *RateLimitError
		if !errors.As(err, &rl) {
			t.Fatalf("Do() error = %v, want *RateLimitError", err)
		}
		if rl.ResetAt.Before(before.Add(25*time.Second)) || rl.ResetAt.After(before.Add(35*time.Second)) {
			t.Errorf("ResetAt = %v, want about 30s from now", rl.ResetAt)
		}
	})

	t.Run("transparent retry after the window", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", "89")
			writeData(w, `{"ok":1}`)
		}))
		defer server.Close()

		g := newTestGateway(server.URL, 0)
		start := time.Now()
		data, err := g.Do(context.Background(), GraphQLRequest{Query: "{}"}, CallOptions{})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if string(data) != `{"ok":1}` {
			t.Errorf("data = %s, want {\"ok\":1}", data)
		}
		if n := calls.Load(); n != 2 {
			t.Errorf("requests = %d, want 2", n)
		}
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("retried after %v, want at least a window", elapsed)
		}
	})

	t.Run("penalty window short-circuits without a request", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			writeData(w, `{}`)
		}))
		defer server.Close()

		g := newTestGateway(server.URL, 0)
		g.mu.Lock()
		g.resetAt = time.Now().Add(time.Hour)
		g.mu.Unlock()

		_, err := g.Do(context.Background(), GraphQLRequest{Query: "{}"}, CallOptions{FailOnThrottle: true})
		var rl *RateLimitError
		if !errors.As(err, &rl) {
			t.Fatalf("Do() error = %v, want *RateLimitError", err)
		}
		if n := calls.Load(); n != 0 {
			t.Errorf("requests = %d, want 0", n)
		}
	})
}

func TestGatewayResetSkew(t *testing.T) {
	t.Parallel()

	now := time.Now()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(now.Unix(), 10))
		w.Header().Set("Retry-After", "5") // absolute reset wins over the delta
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	g := newTestGateway(server.URL, 0)
	_, err := g.Do(context.Background(), GraphQLRequest{Query: "{}"}, CallOptions{FailOnThrottle: true})
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("Do() error = %v, want *RateLimitError", err)
	}

	want := time.Unix(now.Unix(), 0).Add(resetSkew)
	if !rl.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v (reset header plus skew)", rl.ResetAt, want)
	}
}

func TestGatewayErrorClassification(t *testing.T) {
	t.Parallel()

	t.Run("graphql errors array", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"errors":[{"message":"first"},{"message":"second"}]}`))
		}))
		defer server.Close()

		g := newTestGateway(server.URL, 0)
		_, err := g.Do(context.Background(), GraphQLRequest{Query: "{}"}, CallOptions{})
		var ge *GraphQLError
		if !errors.As(err, &ge) {
			t.Fatalf("Do() error = %v, want *GraphQLError", err)
		}
		if len(ge.Messages) != 2 || ge.Messages[0] != "first" || ge.Messages[1] != "second" {
			t.Errorf("Messages = %v, want [first second]", ge.Messages)
		}
	})

	t.Run("bad request carries the status", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errors":[{"message":"malformed"}]}`))
		}))
		defer server.Close()

		g := newTestGateway(server.URL, 0)
		_, err := g.Do(context.Background(), GraphQLRequest{Query: "{}"}, CallOptions{})
		var he *HTTPError
		if !errors.As(err, &he) {
			t.Fatalf("Do() error = %v, want *HTTPError", err)
		}
		if he.Status != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", he.Status)
		}
	})

	t.Run("undecodable body", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json at all`))
		}))
		defer server.Close()

		g := newTestGateway(server.URL, 0)
		_, err := g.Do(context.Background(), GraphQLRequest{Query: "{}"}, CallOptions{})
		if err == nil {
			t.Fatal("Do() error = nil, want decode failure")
		}
	})
}
