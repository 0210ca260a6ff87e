// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package sync

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RateLimitError reports that the quota window is exhausted. It carries
// the instant at which the window resets so callers that opted out of
// transparent waiting can schedule their own retry.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

// HTTPError is a non-2xx response from a remote service. Body holds a
// bounded excerpt of the response for diagnostics.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, http.StatusText(e.Status))
}

// GraphQLError is a 200 response whose envelope carries an errors
// array. The whole call is treated as failed even if partial data was
// returned alongside.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// isServerError reports whether err is an HTTP 5xx response.
func isServerError(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status >= 500
}

// isNotFound reports whether err is an HTTP 404 response.
func isNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusNotFound
}
