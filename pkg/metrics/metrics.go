// Package metrics provides prometheus collectors of the automation.
//
// Methods are safe to call on nil receivers; they record nothing.
package metrics

import (
	"errors"
	"time"

	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pipeline_monitor"

// result labels
const (
	ResultOk        = "ok"
	ResultNotFound  = "not_found"
	ResultInvalid   = "invalid"
	ResultTransient = "transient"
	ResultError     = "error"
)

// ResultOf classifies err into a result label.
func ResultOf(err error) string {
	switch {
	case err == nil:
		return ResultOk
	case errors.Is(err, domerr.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, domerr.ErrInvalid):
		return ResultInvalid
	case domerr.IsTransient(err):
		return ResultTransient
	default:
		return ResultError
	}
}

// SubmissionMetrics is about submissions, made by any submitter.
type SubmissionMetrics struct {
	submissions    *prometheus.CounterVec
	subAnalyses    prometheus.Counter
	submitDuration prometheus.Histogram
}

// NewSubmissionMetrics creates and registers submission metrics.
func NewSubmissionMetrics(registry prometheus.Registerer) (*SubmissionMetrics, error) {
	m := &SubmissionMetrics{
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Total number of submissions, by result",
			},
			[]string{"result"},
		),
		subAnalyses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sub_analyses_created_total",
				Help:      "Total number of sub-analyses created",
			},
		),
		submitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submit_duration_seconds",
				Help:      "Time taken to submit an analysis",
				// 5ms .. ~10s
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SubmissionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.submissions.Describe(ch)
	m.subAnalyses.Describe(ch)
	m.submitDuration.Describe(ch)
}

func (m *SubmissionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.submissions.Collect(ch)
	m.subAnalyses.Collect(ch)
	m.submitDuration.Collect(ch)
}

// RecordSubmission records a submission which took d, created subAnalyses and ended with err.
func (m *SubmissionMetrics) RecordSubmission(d time.Duration, subAnalyses int, err error) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(ResultOf(err)).Inc()
	m.submitDuration.Observe(d.Seconds())
	if err == nil {
		m.subAnalyses.Add(float64(subAnalyses))
	}
}

// PollingMetrics is about cycles of the automation loop.
type PollingMetrics struct {
	cycles        *prometheus.CounterVec
	unsubmitted   prometheus.Gauge
	cycleDuration prometheus.Histogram
	marked        prometheus.Counter
}

// NewPollingMetrics creates and registers polling metrics.
func NewPollingMetrics(registry prometheus.Registerer) (*PollingMetrics, error) {
	m := &PollingMetrics{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_cycles_total",
				Help:      "Total number of poll cycles, by result of fetching acquisitions",
			},
			[]string{"result"},
		),
		unsubmitted: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "unsubmitted_acquisitions",
				Help:      "Number of unsubmitted finished acquisitions found by the last poll",
			},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_cycle_duration_seconds",
				Help:      "Time taken by a poll cycle",
				// 10ms .. ~5min
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
			},
		),
		marked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "acquisitions_marked_total",
				Help:      "Total number of acquisitions recorded in the submission ledger",
			},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PollingMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.cycles.Describe(ch)
	m.unsubmitted.Describe(ch)
	m.cycleDuration.Describe(ch)
	m.marked.Describe(ch)
}

func (m *PollingMetrics) Collect(ch chan<- prometheus.Metric) {
	m.cycles.Collect(ch)
	m.unsubmitted.Collect(ch)
	m.cycleDuration.Collect(ch)
	m.marked.Collect(ch)
}

// RecordFetch records the result of fetching unsubmitted acquisitions.
//
// found is ignored when err is not nil.
func (m *PollingMetrics) RecordFetch(found int, err error) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(ResultOf(err)).Inc()
	if err == nil {
		m.unsubmitted.Set(float64(found))
	}
}

// RecordCycle records time taken by a whole cycle.
func (m *PollingMetrics) RecordCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}

// RecordMarked counts an acquisition newly recorded in the ledger.
func (m *PollingMetrics) RecordMarked() {
	if m == nil {
		return
	}
	m.marked.Inc()
}
