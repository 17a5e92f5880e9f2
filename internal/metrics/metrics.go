// Package metrics holds the Prometheus collectors for the learning
// coordinator and the store.
//
// Collectors are registered on the registerer passed to New, so tests can
// use a private registry and the daemon can expose its own on /metrics.
// Every recording method is safe on a nil *Metrics.
//
// Metrics:
//   - quotelearn_quotes_processed_total{path,outcome}
//   - quotelearn_process_duration_seconds{path}
//   - quotelearn_statements_total{action}
//   - quotelearn_learning_skipped_total{reason}
//   - quotelearn_extraction_duration_seconds{extractor,result}
//   - quotelearn_patterns_transferred_total
//   - quotelearn_events_published_total{type,result}
//   - quotelearn_store_operations_total{op,result}
//   - quotelearn_store_operation_duration_seconds{op}
//   - quotelearn_store_conflicts_total{record}
//   - quotelearn_updates_lost_total{record}
//   - quotelearn_rule_reloads_total{result}
//   - quotelearn_redactions_total{rule}
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quotelearn"

// Metrics holds the collectors.
type Metrics struct {
	// Coordinator
	QuotesProcessed *prometheus.CounterVec
	ProcessDuration *prometheus.HistogramVec
	Statements      *prometheus.CounterVec
	LearningSkipped *prometheus.CounterVec

	// Extraction and transfer
	ExtractionDuration  *prometheus.HistogramVec
	PatternsTransferred prometheus.Counter
	EventsPublished     *prometheus.CounterVec
	RuleReloads         *prometheus.CounterVec
	Redactions          *prometheus.CounterVec

	// Store
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	StoreConflicts  *prometheus.CounterVec
	UpdatesLost     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg
// registers on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		QuotesProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quotes_processed_total",
				Help:      "Finalized quotes processed by path and outcome",
			},
			[]string{"path", "outcome"}, // path: correction, acceptance
		),
		ProcessDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "process_duration_seconds",
				Help:      "Time to process one finalized quote",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"path"},
		),
		Statements: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statements_total",
				Help:      "Learning statements by action",
			},
			[]string{"action"}, // created, merged, rejected, evicted, seeded
		),
		LearningSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "learning_skipped_total",
				Help:      "Quotes whose learning step was skipped, by reason",
			},
			[]string{"reason"},
		),
		ExtractionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extraction_duration_seconds",
				Help:      "Delta extraction latency",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"extractor", "result"},
		),
		PatternsTransferred: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "patterns_transferred_total",
				Help:      "Statements merged into contractor DNA",
			},
		),
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Learning events published, by type and result",
			},
			[]string{"type", "result"},
		),
		RuleReloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_reloads_total",
				Help:      "Rule file reloads by result",
			},
			[]string{"result"},
		),
		Redactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redactions_total",
				Help:      "Drafted statements redacted, by secret rule",
			},
			[]string{"rule"},
		),
		StoreOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Store operations by operation and result",
			},
			[]string{"op", "result"},
		),
		StoreDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Store operation latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		StoreConflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_conflicts_total",
				Help:      "Versioned writes rejected because the record changed",
			},
			[]string{"record"}, // profile, dna
		),
		UpdatesLost: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_lost_total",
				Help:      "Updates dropped after a retried conflict",
			},
			[]string{"record"},
		),
	}
}

// RecordProcessed counts one processed quote.
func (m *Metrics) RecordProcessed(path, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.QuotesProcessed.WithLabelValues(path, outcome).Inc()
	m.ProcessDuration.WithLabelValues(path).Observe(d.Seconds())
}

// RecordStatements adds n statements under action.
func (m *Metrics) RecordStatements(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Statements.WithLabelValues(action).Add(float64(n))
}

// RecordSkipped counts a skipped learning step.
func (m *Metrics) RecordSkipped(reason string) {
	if m == nil {
		return
	}
	m.LearningSkipped.WithLabelValues(reason).Inc()
}

// RecordExtraction observes one extraction call.
func (m *Metrics) RecordExtraction(extractor string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ExtractionDuration.WithLabelValues(extractor, result(err)).Observe(d.Seconds())
}

// RecordTransferred counts patterns merged into DNA.
func (m *Metrics) RecordTransferred(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PatternsTransferred.Add(float64(n))
}

// RecordPublished counts one event publish.
func (m *Metrics) RecordPublished(eventType string, err error) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType, result(err)).Inc()
}

// RecordRuleReload counts one rule file reload.
func (m *Metrics) RecordRuleReload(err error) {
	if m == nil {
		return
	}
	m.RuleReloads.WithLabelValues(result(err)).Inc()
}

// RecordRedactions counts one redacted statement under each rule.
func (m *Metrics) RecordRedactions(rules []string) {
	if m == nil {
		return
	}
	for _, r := range rules {
		m.Redactions.WithLabelValues(r).Inc()
	}
}

// RecordUpdateLost counts an update dropped after its retry.
func (m *Metrics) RecordUpdateLost(record string) {
	if m == nil {
		return
	}
	m.UpdatesLost.WithLabelValues(record).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
