// Package metrics declares the Prometheus collectors exposed on the relay's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProbesTotal counts completed stream probes.
// The "result" label is "ok" or "error".
var ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vidra_probes_total",
	Help: "Number of stream probes performed",
}, []string{"result"})

// ProbeDuration observes how long a probe took, cached hits excluded.
var ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "vidra_probe_duration_seconds",
	Help:    "Duration of stream probes",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 9),
})

// ProviderRequests counts aggregator requests per endpoint and outcome.
var ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vidra_provider_requests_total",
	Help: "Number of aggregator API requests",
}, []string{"endpoint", "outcome"})

// CacheLookups counts provider response cache lookups.
var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vidra_cache_lookups_total",
	Help: "Provider response cache lookups",
}, []string{"cache", "result"})

// RelayRequests counts playlists served by the local relay.
// The "kind" label is "master", "media" or "error".
var RelayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vidra_relay_requests_total",
	Help: "Playlists served by the manifest relay",
}, []string{"kind"})

// SessionPhase tracks the number of sessions in each phase.
var SessionPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "vidra_session_phase",
	Help: "Playback sessions per phase",
}, []string{"phase"})
