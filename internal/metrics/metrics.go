// Package metrics records per-run counters for the node_exporter textfile
// collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pfrederiksen/measurecamp-ics/internal/reconcile"
)

const namespace = "measurecamp_ics"

// Recorder holds the metrics of one run in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	outcomes       *prometheus.CounterVec
	feedErrors     prometheus.Counter
	records        *prometheus.GaugeVec
	calendarEvents prometheus.Gauge
	skippedEvents  prometheus.Counter
	lastSuccess    prometheus.Gauge
	runDuration    prometheus.Gauge
}

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_items_total",
		Help:      "Feed items processed, by reconciliation outcome",
	}, []string{"action"})
	r.feedErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_errors_total",
		Help:      "Feed items that failed before reconciliation",
	})
	r.records = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "records",
		Help:      "Records in the store after the run, by state",
	}, []string{"state"})
	r.calendarEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "calendar_events",
		Help:      "VEVENT blocks written to the calendar",
	})
	r.skippedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calendar_skipped_total",
		Help:      "Records left out of the calendar because they could not be serialized",
	})
	r.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful run",
	})
	r.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run",
	})

	r.registry.MustRegister(
		r.outcomes,
		r.feedErrors,
		r.records,
		r.calendarEvents,
		r.skippedEvents,
		r.lastSuccess,
		r.runDuration,
	)

	// Expose every action even when its count is zero.
	for _, a := range []reconcile.Action{reconcile.Inserted, reconcile.Updated, reconcile.Unchanged, reconcile.Rejected} {
		r.outcomes.WithLabelValues(a.String())
	}
	return r
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun adds the outcome counts of a reconciliation pass.
func (r *Recorder) ObserveRun(result *reconcile.Result) {
	if result == nil {
		return
	}
	r.outcomes.WithLabelValues(reconcile.Inserted.String()).Add(float64(result.Inserted))
	r.outcomes.WithLabelValues(reconcile.Updated.String()).Add(float64(result.Updated))
	r.outcomes.WithLabelValues(reconcile.Unchanged.String()).Add(float64(result.Unchanged))
	r.outcomes.WithLabelValues(reconcile.Rejected.String()).Add(float64(result.Rejected))
	r.feedErrors.Add(float64(result.FeedErrors))
}

// SetRecords records the store size split into upcoming and past records.
func (r *Recorder) SetRecords(upcoming, past int) {
	r.records.WithLabelValues("upcoming").Set(float64(upcoming))
	r.records.WithLabelValues("past").Set(float64(past))
}

// ObserveCalendar records how many events were written and skipped.
func (r *Recorder) ObserveCalendar(written, skipped int) {
	r.calendarEvents.Set(float64(written))
	r.skippedEvents.Add(float64(skipped))
}

// MarkSuccess records the completion time and duration of a successful run.
func (r *Recorder) MarkSuccess(at time.Time, took time.Duration) {
	r.lastSuccess.Set(float64(at.Unix()))
	r.runDuration.Set(took.Seconds())
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
