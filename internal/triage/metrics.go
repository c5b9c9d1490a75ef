package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	RunQueried       prometheus.Histogram
	RecordsTotal     *prometheus.CounterVec
	SemanticCalls    prometheus.Counter
	SemanticFailures prometheus.Counter
	SemanticDuration prometheus.Histogram
	WriteFailures    prometheus.Counter
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldtriage_runs_total",
			Help: "Total triage passes by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldtriage_run_duration_seconds",
			Help:    "Duration of triage passes in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}, []string{"status"}),
		RunQueried: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldtriage_run_records_queried",
			Help:    "Unprocessed records found per pass.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 .. ~2048
		}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldtriage_records_classified_total",
			Help: "Records classified by resulting label and pipeline stage.",
		}, []string{"label", "stage"}),
		SemanticCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtriage_semantic_calls_total",
			Help: "Total semantic stage invocations, including failed ones.",
		}),
		SemanticFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtriage_semantic_failures_total",
			Help: "Semantic stage invocations that degraded to no signal.",
		}),
		SemanticDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldtriage_semantic_call_duration_seconds",
			Help:    "Duration of individual semantic inference calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtriage_write_failures_total",
			Help: "Per-record status writes rejected by the store.",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RunQueried,
		m.RecordsTotal,
		m.SemanticCalls,
		m.SemanticFailures,
		m.SemanticDuration,
		m.WriteFailures,
	)

	return m
}

// Hooks returns PipelineHooks that increment the per-record metrics.
func (m *Metrics) Hooks() PipelineHooks {
	return PipelineHooks{
		OnSemanticCall: func(duration float64, failed bool) {
			m.SemanticCalls.Inc()
			m.SemanticDuration.Observe(duration)
			if failed {
				m.SemanticFailures.Inc()
			}
		},
		OnDecision: func(label string, stage Stage) {
			m.RecordsTotal.WithLabelValues(label, string(stage)).Inc()
		},
	}
}

// ObserveRun records pass-level metrics from a finished report.
func (m *Metrics) ObserveRun(r *Report) {
	m.RunsTotal.WithLabelValues(string(r.Status)).Inc()
	m.RunDuration.WithLabelValues(string(r.Status)).Observe(r.Duration)
	m.RunQueried.Observe(float64(r.Queried))
	m.WriteFailures.Add(float64(len(r.WriteFailures())))
}
