package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for database builds.
type Metrics struct {
	// Collation metrics.
	CandidatesProcessed prometheus.Counter
	EventsCollated      prometheus.Counter
	NearMisses          prometheus.Counter
	MalformedRecords    prometheus.Counter
	EventsSkipped       prometheus.Counter
	CollationDuration   prometheus.Histogram

	// Event pipeline metrics.
	EventsLoaded    prometheus.Counter
	EventsFiltered  prometheus.Counter
	EventsPublished prometheus.Counter
	RunRunning      prometheus.Gauge

	// Catalog metrics.
	CatalogRequests        *prometheus.CounterVec   // labels: endpoint={events,detail,product}, outcome={success,error}
	CatalogRequestDuration *prometheus.HistogramVec // labels: endpoint

	// Aggregated product metrics.
	ProductsStored *prometheus.CounterVec // labels: product={dyfi_geo_1km,dyfi_geo_10km}, outcome={success,error,missing}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CandidatesProcessed,
		m.EventsCollated,
		m.NearMisses,
		m.MalformedRecords,
		m.EventsSkipped,
		m.CollationDuration,
		m.EventsLoaded,
		m.EventsFiltered,
		m.EventsPublished,
		m.RunRunning,
		m.CatalogRequests,
		m.CatalogRequestDuration,
		m.ProductsStored,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CandidatesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dyfidb",
			Name:      "candidates_processed_total",
			Help:      "Candidate records scanned against the catalog.",
		}),
		EventsCollated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dyfidb",
			Name:      "candidates_collated_total",
			Help:      "Candidate records bound to a catalog event.",
		}),
		NearMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dyfidb",
			Name:      "near_misses_total",
			Help:      "Candidate/event pairs reported as possible matches.",
		}),
		MalformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dyfidb",
			Name:      "malformed_records_total",
			Help:      "Collate-file lines skipped as malformed.",
		}),
		EventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dyfidb",
			Name:      "events_skipped_total",
			Help:      "Catalog events excluded from collation for missing fields.",
		}),
		CollationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dyfidb",
			Name:      "collation_duration_seconds",
			Help:      "Duration of a complete collation pass.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		EventsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dyfidb",
			Name:      "events_loaded_total",
			Help:      "Catalog events read from the source.",
		}),
		EventsFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dyfidb",
			Name:      "events_filtered_total",
			Help:      "Catalog events kept by the time and space filters.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dyfidb",
			Name:      "events_published_total",
			Help:      "Events published to the Kafka topic.",
		}),
		RunRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dyfidb",
			Name:      "run_running",
			Help:      "1 while a build is in progress, 0 otherwise.",
		}),
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dyfidb",
			Name:      "catalog_requests_total",
			Help:      "Catalog requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		CatalogRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dyfidb",
			Name:      "catalog_request_duration_seconds",
			Help:      "Catalog request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		ProductsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dyfidb",
			Name:      "products_stored_total",
			Help:      "Aggregated DYFI products by product and outcome.",
		}, []string{"product", "outcome"}),
	}
}
