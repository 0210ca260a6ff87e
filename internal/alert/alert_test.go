// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package alert

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestReportErrorDeliversWebhook(t *testing.T) {
	t.Parallel()

	received := make(chan report, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		var rep report
		if err := json.Unmarshal(body, &rep); err != nil {
			t.Errorf("decoding report: %v", err)
		}
		received <- rep
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewNotifier(server.URL)
	n.ReportError("refresh_media", errors.New("quota exhausted"))

	select {
	case rep := <-received:
		if rep.Task != "refresh_media" {
			t.Errorf("task = %q, want refresh_media", rep.Task)
		}
		if rep.Error != "quota exhausted" {
			t.Errorf("error = %q", rep.Error)
		}
		if _, err := time.Parse(time.RFC3339, rep.Time); err != nil {
			t.Errorf("time %q not RFC3339: %v", rep.Time, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never received the report")
	}
}

func TestReportErrorNoWebhook(t *testing.T) {
	t.Parallel()

	// Must not panic or block with no URL, a nil receiver, or a nil error.
	NewNotifier("").ReportError("refresh_lists", errors.New("boom"))
	(*Notifier)(nil).ReportError("refresh_lists", errors.New("boom"))

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("nil error must not be delivered")
	}))
	defer server.Close()
	NewNotifier(server.URL).ReportError("refresh_lists", nil)
	time.Sleep(50 * time.Millisecond)
}
