// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

// Package metrics provides Prometheus instrumentation for Marquee:
// popularity lookup outcomes, enrichment cache efficiency, ranking
// generation lifecycle, and the HTTP/WebSocket surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Popularity lookup metrics

	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_popularity_lookups_total",
			Help: "Total popularity lookups issued, by outcome (success, failure, rejected)",
		},
		[]string{"outcome"},
	)

	LookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marquee_popularity_lookup_duration_seconds",
			Help:    "Duration of individual popularity lookups in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	LookupBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_popularity_lookup_batches_total",
			Help: "Total lookup batches dispatched by the enrichment cache",
		},
	)

	// Enrichment cache metrics

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_enrichment_cache_hits_total",
			Help: "Resolve requests satisfied from the in-memory score cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_enrichment_cache_misses_total",
			Help: "Resolve requests that required an upstream lookup",
		},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_enrichment_cache_entries",
			Help: "Current number of cached popularity scores",
		},
	)

	InFlightLookups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_enrichment_inflight_keys",
			Help: "Cast members currently being resolved",
		},
	)

	StoreHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_popularity_store_hits_total",
			Help: "Resolve requests satisfied from the persistent popularity store",
		},
	)

	// Ranking generation metrics

	GenerationsMinted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_ranking_generations_total",
			Help: "Ranking generations minted, by trigger kind",
		},
		[]string{"trigger"},
	)

	GenerationsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_ranking_generations_discarded_total",
			Help: "Enrichment results discarded because a newer generation superseded them",
		},
	)

	ReorderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marquee_ranking_reorder_duration_seconds",
			Help:    "Duration of ranking phases in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"}, // "baseline", "enrich_visible", "enrich_full", "apply"
	)

	DebouncedTriggers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_ranking_debounced_triggers_total",
			Help: "Item-count triggers absorbed by the debounce window",
		},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marquee_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "outcome"},
	)

	// HTTP and WebSocket metrics

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_http_requests_total",
			Help: "Total HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marquee_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_websocket_clients",
			Help: "Currently connected ranking subscribers",
		},
	)
)
