package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// triage pipeline.
type Metrics struct {
	AlertsProcessed prometheus.Counter
	AlertsDuplicate prometheus.Counter
	AlertsRejected  prometheus.Counter
	PipelineRunning prometheus.Gauge

	BatchSize       prometheus.Histogram
	RateLimitDenied prometheus.Counter

	// Delivery metrics.
	Deliveries       *prometheus.CounterVec // labels: channel, outcome={success,failure}
	DeliveryDuration prometheus.Histogram
	TasksAbandoned   prometheus.Counter
	QueueDepth       prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.AlertsProcessed,
		m.AlertsDuplicate,
		m.AlertsRejected,
		m.PipelineRunning,
		m.BatchSize,
		m.RateLimitDenied,
		m.Deliveries,
		m.DeliveryDuration,
		m.TasksAbandoned,
		m.QueueDepth,
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
		AlertsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alert_triage",
			Name:      "alerts_processed_total",
			Help:      "Total alert records accepted into the pipeline.",
		}),
		AlertsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alert_triage",
			Name:      "alerts_duplicate_total",
			Help:      "Total alerts dropped as duplicates.",
		}),
		AlertsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alert_triage",
			Name:      "alerts_rejected_total",
			Help:      "Total upstream payloads failing record validation.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "alert_triage",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "alert_triage",
			Name:      "batch_size",
			Help:      "Number of alerts per flushed batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		RateLimitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alert_triage",
			Name:      "rate_limit_denied_total",
			Help:      "Total deliveries skipped by recipient rate limiting.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alert_triage",
			Name:      "deliveries_total",
			Help:      "Channel delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		DeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "alert_triage",
			Name:      "delivery_duration_seconds",
			Help:      "Duration of one full delivery pass across channels.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		TasksAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alert_triage",
			Name:      "tasks_abandoned_total",
			Help:      "Delivery tasks dropped after exhausting max attempts.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "alert_triage",
			Name:      "delivery_queue_depth",
			Help:      "Tasks waiting in the delivery queue.",
		}),
	}
}
