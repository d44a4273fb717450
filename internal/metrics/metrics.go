package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/delivery-queue/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	ItemsCompleted  *prometheus.CounterVec
	ItemsFailed     *prometheus.CounterVec
	ProcessingTime  *prometheus.HistogramVec
	QueueDepth      *prometheus.GaugeVec
	MaintenanceRuns *prometheus.CounterVec
}

// New registers all instruments with the given Prometheus registerer.
// Using a custom registry (instead of prometheus.DefaultRegisterer)
// keeps tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_items_completed_total",
			Help: "Total number of successfully delivered queue items.",
		}, []string{"channel"}),

		ItemsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_items_failed_total",
			Help: "Total number of delivery failures (including ones that will be retried).",
		}, []string{"channel"}),

		ProcessingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queue_item_processing_seconds",
			Help:    "Per-item delivery latency from dispatch to adapter ack.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),

		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Current number of queue items per status.",
		}, []string{"status"}),

		MaintenanceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_maintenance_runs_total",
			Help: "Total number of maintenance job executions.",
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.ItemsCompleted,
		m.ItemsFailed,
		m.ProcessingTime,
		m.QueueDepth,
		m.MaintenanceRuns,
	)
	return m
}

// ProcessorHooks returns the metric callbacks expected by the processor.
// Centralises the prometheus observation calls so the processor stays
// metrics-agnostic.
func (m *Metrics) ProcessorHooks() (
	onCompleted func(domain.Channel, time.Duration),
	onFailed func(domain.Channel),
) {
	onCompleted = func(ch domain.Channel, latency time.Duration) {
		m.ItemsCompleted.WithLabelValues(string(ch)).Inc()
		m.ProcessingTime.WithLabelValues(string(ch)).Observe(latency.Seconds())
	}
	onFailed = func(ch domain.Channel) {
		m.ItemsFailed.WithLabelValues(string(ch)).Inc()
	}
	return
}

// SetDepths refreshes the per-status depth gauges from a stats snapshot.
func (m *Metrics) SetDepths(stats *domain.QueueStats) {
	m.QueueDepth.WithLabelValues(string(domain.StatusPending)).Set(float64(stats.Pending))
	m.QueueDepth.WithLabelValues(string(domain.StatusProcessing)).Set(float64(stats.Processing))
	m.QueueDepth.WithLabelValues(string(domain.StatusCompleted)).Set(float64(stats.Completed))
	m.QueueDepth.WithLabelValues(string(domain.StatusFailed)).Set(float64(stats.Failed))
	m.QueueDepth.WithLabelValues(string(domain.StatusRetry)).Set(float64(stats.Retry))
}
