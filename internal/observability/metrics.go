package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	apiRequestsTotal       *prometheus.CounterVec
	apiLatencySeconds      *prometheus.HistogramVec
	apiErrorsTotal         *prometheus.CounterVec
	ingestRowsTotal        *prometheus.CounterVec
	classificationsTotal   *prometheus.CounterVec
	dashboardCacheTotal    *prometheus.CounterVec
	alertsPublishedTotal   *prometheus.CounterVec
	alertStreamClients     prometheus.Gauge
	predictionRunsDuration *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the early-warning API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ews_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		ingestRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_ingest_rows_total",
			Help: "CSV rows processed by ingestion, by record kind and outcome.",
		}, []string{"kind", "outcome"})

		classificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_classifications_total",
			Help: "Student classifications produced, by tier and mode.",
		}, []string{"tier", "mode"})

		dashboardCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_dashboard_cache_total",
			Help: "Dashboard cache lookups by result.",
		}, []string{"result"})

		alertsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_alerts_published_total",
			Help: "Risk alerts published, by type.",
		}, []string{"type"})

		alertStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ews_alert_stream_clients",
			Help: "Active websocket clients listening for risk alerts.",
		})

		predictionRunsDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ews_prediction_run_seconds",
			Help:    "Duration of bulk prediction runs against the external model.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			ingestRowsTotal,
			classificationsTotal,
			dashboardCacheTotal,
			alertsPublishedTotal,
			alertStreamClients,
			predictionRunsDuration,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// IngestRows exposes the counter for ingested CSV rows.
func IngestRows() *prometheus.CounterVec {
	RegisterMetrics()
	return ingestRowsTotal
}

// Classifications exposes the counter for risk classifications.
func Classifications() *prometheus.CounterVec {
	RegisterMetrics()
	return classificationsTotal
}

// DashboardCache exposes the dashboard cache hit/miss counter.
func DashboardCache() *prometheus.CounterVec {
	RegisterMetrics()
	return dashboardCacheTotal
}

// AlertsPublished exposes the counter for published risk alerts.
func AlertsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return alertsPublishedTotal
}

// AlertStreamClients exposes the gauge of connected alert stream clients.
func AlertStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return alertStreamClients
}

// PredictionRuns exposes the histogram of prediction run durations.
func PredictionRuns() *prometheus.HistogramVec {
	RegisterMetrics()
	return predictionRunsDuration
}
