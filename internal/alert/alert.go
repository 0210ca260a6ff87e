// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

// Package alert implements the fire-and-forget failure-report sink.
//
// Scheduled sync operations wrap their top-level run with
// Notifier.ReportError so that one bad cycle is reported and the next
// scheduled run proceeds independently. Reporting failures are logged
// and never propagated.
package alert

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/hoshiko-dev/catalogus/internal/logging"
)

// reportTimeout bounds one webhook delivery attempt.
const reportTimeout = 10 * time.Second

// Notifier posts failure reports to a webhook URL. The zero value and
// a Notifier with an empty URL are valid no-op sinks.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// NewNotifier creates a Notifier. An empty webhookURL disables
// delivery; ReportError still logs.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: reportTimeout},
	}
}

// report is the webhook payload.
type report struct {
	Task  string `json:"task"`
	Error string `json:"error"`
	Time  string `json:"time"`
}

// ReportError logs the failure and, when a webhook is configured,
// delivers it in the background. It never blocks the caller on the
// delivery and never returns an error.
func (n *Notifier) ReportError(task string, err error) {
	logging.Err(err).Str("task", task).Msg("scheduled task failed")

	if n == nil || n.webhookURL == "" || err == nil {
		return
	}

	payload, merr := json.Marshal(report{
		Task:  task,
		Error: err.Error(),
		Time:  time.Now().UTC().Format(time.RFC3339),
	})
	if merr != nil {
		logging.Err(merr).Msg("failed to encode failure report")
		return
	}

	go n.deliver(payload)
}

// deliver posts one report; failures are logged only.
func (n *Notifier) deliver(payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		logging.Err(err).Msg("failed to build failure report request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logging.Err(err).Msg("failed to deliver failure report")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		logging.Warn().Int("status", resp.StatusCode).Msg("failure report rejected by webhook")
	}
}
