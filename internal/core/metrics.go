package core

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every observability hook named by the pipeline's
// components (dedup, dispatcher, guard, terminal consumer). Hooks are
// observation points only: nothing in the core reads them back to make
// decisions.
type Metrics struct {
	DedupDuplicates prometheus.Counter
	DedupCacheSize  prometheus.Gauge

	QueueDepth     *prometheus.GaugeVec
	QueueDepthMean prometheus.Gauge
	TasksSubmitted prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksDropped   prometheus.Counter

	GuardViolations  prometheus.Counter
	DownstreamErrors prometheus.Counter

	EventLatency prometheus.Histogram
}

// NewMetrics constructs a fresh, unregistered set of collectors. Call
// Register to expose them on a Prometheus registry; tests typically leave
// them unregistered to avoid duplicate-registration panics across cases.
func NewMetrics() *Metrics {
	return &Metrics{
		DedupDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dedup_duplicates_total",
			Help: "Events dropped because their uuid was seen within the dedup window.",
		}),
		DedupCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_cache_size",
			Help: "Entries currently held in the seen-uuid table.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatcher_queue_depth",
			Help: "Pending tasks in a shard's queue, sampled after each dequeue.",
		}, []string{"shard"}),
		QueueDepthMean: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatcher_queue_depth_mean",
			Help: "Mean pending-task depth across all shards.",
		}),
		TasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatcher_tasks_submitted_total",
			Help: "Events accepted by the dispatcher and enqueued to a shard.",
		}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatcher_tasks_completed_total",
			Help: "Shard tasks that finished running the downstream chain, success or failure.",
		}),
		TasksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatcher_tasks_dropped_total",
			Help: "Events dropped: a bounded shard queue was full under the drop_newest policy, or the owning shard has terminated.",
		}),
		GuardViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guard_violations_total",
			Help: "Concurrency violations detected by the optional ConcurrencyGuard stage.",
		}),
		DownstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatcher_downstream_errors_total",
			Help: "Tasks whose terminal stage returned an error, logged and counted but not retried.",
		}),
		EventLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "event_latency_seconds",
			Help:    "Time from event creation to the start of terminal processing.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register exposes all collectors on reg. Safe to call once per Metrics
// instance; registering the same instance twice panics, as with any
// Prometheus collector.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.DedupDuplicates,
		m.DedupCacheSize,
		m.QueueDepth,
		m.QueueDepthMean,
		m.TasksSubmitted,
		m.TasksCompleted,
		m.TasksDropped,
		m.GuardViolations,
		m.DownstreamErrors,
		m.EventLatency,
	)
}
