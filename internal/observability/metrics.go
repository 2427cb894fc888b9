package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL
// batch job and the dataset service.
type Metrics struct {
	RecordsRead      prometheus.Counter
	RecordsWritten   prometheus.Counter
	RecordsDropped   *prometheus.CounterVec // labels: reason
	SinkErrors       *prometheus.CounterVec // labels: sink
	BatchDuration    prometheus.Histogram
	LastRunTimestamp prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// Dataset service metrics.
	DatasetRecords prometheus.Gauge
	DatasetReloads *prometheus.CounterVec // labels: outcome={success,error}
	LiveFetches    *prometheus.CounterVec // labels: feed, outcome={success,error,rate_limited}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pandemic_etl",
			Name:      "records_read_total",
			Help:      "Total source rows read.",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pandemic_etl",
			Name:      "records_written_total",
			Help:      "Total cleaned rows written.",
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pandemic_etl",
			Name:      "records_dropped_total",
			Help:      "Rows removed by the cleaning pass, by reason.",
		}, []string{"reason"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pandemic_etl",
			Name:      "sink_errors_total",
			Help:      "Failed loads by sink.",
		}, []string{"sink"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pandemic_etl",
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete extract-clean-load run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pandemic_etl",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pandemic_etl",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pandemic_etl",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pandemic_etl",
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pandemic_etl",
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
		DatasetRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pandemic_etl",
			Name:      "dataset_records",
			Help:      "Records in the currently served dataset.",
		}),
		DatasetReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pandemic_etl",
			Name:      "dataset_reloads_total",
			Help:      "Dataset reloads by outcome.",
		}, []string{"outcome"}),
		LiveFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pandemic_etl",
			Name:      "live_fetches_total",
			Help:      "Live feed fetches by feed and outcome.",
		}, []string{"feed", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsRead,
		m.RecordsWritten,
		m.RecordsDropped,
		m.SinkErrors,
		m.BatchDuration,
		m.LastRunTimestamp,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.DatasetRecords,
		m.DatasetReloads,
		m.LiveFetches,
	}
}
