// Package metrics exposes prometheus collectors for the slides service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "slides"

// Outcomes of a file deletion
const (
	OutcomeDeleted = "deleted"
	OutcomeAbsent  = "absent"
	OutcomeFailed  = "failed"
)

// M holds all metrics for the service
type M struct {
	// Requests counts HTTP requests, by method and status code
	Requests *prometheus.CounterVec

	// RequestDuration observes HTTP request latency in seconds, by method
	RequestDuration *prometheus.HistogramVec

	// ManifestWrites counts commits of the manifest file
	ManifestWrites prometheus.Counter

	// FileDeletions counts attempted slide file deletions, by outcome
	FileDeletions *prometheus.CounterVec
}

// New builds the collectors and registers them with reg.
//
// When reg is nil, collectors are created but not registered.
func New(reg prometheus.Registerer) *M {
	factory := promauto.With(reg)
	return &M{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, including calls to the repository API.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ManifestWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifest_writes_total",
			Help:      "Commits of the manifest file.",
		}),
		FileDeletions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_deletions_total",
			Help:      "Slide files deletions attempted after a manifest update, by outcome.",
		}, []string{"outcome"}),
	}
}
