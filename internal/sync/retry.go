// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package sync

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// withBackoff retries op with exponential backoff and jitter for as
// long as the failure looks transient. Protocol-level failures (typed
// HTTP, GraphQL, and rate-limit errors) are permanent here: throttling
// has its own wait path in the gateway and server-side errors are
// contained per batch by the fetcher.
func withBackoff(ctx context.Context, op backoff.Operation) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 2 * time.Minute

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

// isTransient reports whether err is worth retrying: transport-level
// failures only, never cancellation and never typed protocol errors.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rateLimitErr *RateLimitError
	var httpErr *HTTPError
	var graphqlErr *GraphQLError
	if errors.As(err, &rateLimitErr) || errors.As(err, &httpErr) || errors.As(err, &graphqlErr) {
		return false
	}

	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) || errors.As(err, &urlErr)
}
