// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BundleGenerationDuration tracks end-to-end bundle engine latency.
	BundleGenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "concierge",
		Name:      "bundle_generation_seconds",
		Help:      "Latency of bundle generation requests.",
		Buckets:   prometheus.DefBuckets,
	})

	// BundleCacheHits counts fingerprint cache hits.
	BundleCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "concierge",
		Name:      "bundle_cache_hits_total",
		Help:      "Bundle responses served from the fingerprint cache.",
	})

	// UpstreamFallbacks counts synthetic inventory substitutions per service.
	UpstreamFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Name:      "upstream_fallbacks_total",
		Help:      "Upstream searches that exhausted retries and fell back.",
	}, []string{"service"})

	// DealsIngested counts deals processed by the pipeline per stage outcome.
	DealsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Name:      "deals_ingested_total",
		Help:      "Deals ingested by the pipeline, labelled by source.",
	}, []string{"source"})

	// DealEventsPublished counts deal.events emissions.
	DealEventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "concierge",
		Name:      "deal_events_published_total",
		Help:      "Deal events published to the bus.",
	})

	// DealEventPublishFailures counts emission failures (logged and skipped).
	DealEventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "concierge",
		Name:      "deal_event_publish_failures_total",
		Help:      "Deal event publish failures.",
	})

	// WatchTriggers counts watches fired by the evaluator.
	WatchTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "concierge",
		Name:      "watch_triggers_total",
		Help:      "Watches fired by the evaluator loop.",
	})

	// ActiveConnections gauges live duplex channels in the registry.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "concierge",
		Name:      "active_connections",
		Help:      "Live WebSocket connections in the registry.",
	})
)
