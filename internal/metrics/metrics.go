// Package metrics holds the Prometheus collectors of the resolver and the
// requisition listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionItemsTotal counts resolved items by winning strategy and status
	ResolutionItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartquote",
			Name:      "resolution_items_total",
			Help:      "Total number of resolved items by strategy and status",
		},
		[]string{"strategy", "status"},
	)

	// BatchDuration tracks ResolveBatch duration in seconds
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "smartquote",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch resolutions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// SemanticRequestsTotal counts language-model calls by result
	SemanticRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartquote",
			Name:      "semantic_requests_total",
			Help:      "Total number of semantic normalization requests by result",
		},
		[]string{"result"},
	)

	// CatalogFetchTotal counts catalog snapshot fetches by result
	CatalogFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartquote",
			Name:      "catalog_fetch_total",
			Help:      "Total number of catalog fetches by result",
		},
		[]string{"result"},
	)

	// EmailsProcessedTotal counts requisition e-mails handled by the listener
	EmailsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartquote",
			Subsystem: "listener",
			Name:      "emails_processed_total",
			Help:      "Total number of requisition e-mails processed by status",
		},
		[]string{"status"},
	)

	// ListenerCyclesTotal counts polling cycles
	ListenerCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartquote",
			Subsystem: "listener",
			Name:      "cycles_total",
			Help:      "Total number of listener polling cycles by result",
		},
		[]string{"result"},
	)
)

const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultEmpty = "empty"
)
