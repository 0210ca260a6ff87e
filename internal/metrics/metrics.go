// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

// Package metrics provides Prometheus collectors for the sync engine.
//
// Exposed on the ops endpoint at /metrics. Collectors cover the quota
// gateway (remaining allowance, request outcomes, throttle waits), the
// per-collection sync cycles, and the MyAnimeList circuit breaker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Quota gateway metrics.

	// QuotaRemaining tracks the last remaining-quota value observed
	// from the catalog provider's response headers.
	QuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anilist_quota_remaining",
		Help: "Remaining request allowance in the current rate-limit window",
	})

	// GatewayRequests counts gateway calls by outcome.
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anilist_gateway_requests_total",
		Help: "Gateway calls by outcome (success, throttled, http_error, graphql_error, decode_error)",
	}, []string{"outcome"})

	// ThrottleWaits counts transparent sleeps waiting for the quota
	// window to reset.
	ThrottleWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anilist_throttle_waits_total",
		Help: "Number of transparent waits for the rate-limit window to reset",
	})

	// LowPriorityWaits counts low-priority calls that had to wait for
	// quota headroom before proceeding.
	LowPriorityWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anilist_low_priority_waits_total",
		Help: "Low-priority calls that waited for quota headroom",
	})

	// Sync cycle metrics.

	// SyncDuration observes per-collection cycle duration.
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_cycle_duration_seconds",
		Help:    "Duration of one collection's refresh cycle",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"collection"})

	// SyncProcessed counts entities merged per collection.
	SyncProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_entities_processed_total",
		Help: "Entities merged into the store per collection",
	}, []string{"collection"})

	// SyncErrors counts failed cycle steps.
	SyncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_errors_total",
		Help: "Failed sync steps by task name",
	}, []string{"task"})

	// SyncLastSuccess records the unix time of the last successful run
	// per task.
	SyncLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sync_last_success_timestamp",
		Help: "Unix timestamp of the last successful run per task",
	}, []string{"task"})

	// ListEntriesReplaced counts list entries written per provider.
	ListEntriesReplaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "list_entries_replaced_total",
		Help: "List entries written on atomic replace, by provider service",
	}, []string{"service"})

	// Circuit breaker metrics.

	// CircuitBreakerState reports breaker state (0 closed, 1 half-open,
	// 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	// CircuitBreakerTransitions counts state transitions.
	CircuitBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions",
	}, []string{"name", "from", "to"})
)
