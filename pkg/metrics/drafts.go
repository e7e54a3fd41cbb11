package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DraftMetrics records the outcome of draft autosaves.
type DraftMetrics struct {
	saves    *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewDraftMetrics registers the draft metrics on the provided registerer.
func NewDraftMetrics(reg prometheus.Registerer) *DraftMetrics {
	if reg == nil {
		return &DraftMetrics{}
	}
	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "draft_save_total",
		Help: "Draft persistence calls by operation and result.",
	}, []string{"op", "result"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "draft_save_skipped_total",
		Help: "Debounced saves skipped by a guard.",
	}, []string{"reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "draft_save_duration_seconds",
		Help:    "Duration of draft saves in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(saves, skipped, duration)
	return &DraftMetrics{
		saves:    saves,
		skipped:  skipped,
		duration: duration,
	}
}

// ObserveSave records a save attempt.
func (d *DraftMetrics) ObserveSave(duration time.Duration, err error) {
	if d == nil || d.saves == nil {
		return
	}
	d.saves.WithLabelValues("save", result(err)).Inc()
	d.duration.Observe(duration.Seconds())
}

// ObserveRestore records a restore attempt.
func (d *DraftMetrics) ObserveRestore(err error) {
	if d == nil || d.saves == nil {
		return
	}
	d.saves.WithLabelValues("restore", result(err)).Inc()
}

// ObserveClear records a clear attempt.
func (d *DraftMetrics) ObserveClear(err error) {
	if d == nil || d.saves == nil {
		return
	}
	d.saves.WithLabelValues("clear", result(err)).Inc()
}

// IncSkipped counts a save that a guard declined.
func (d *DraftMetrics) IncSkipped(reason string) {
	if d == nil || d.skipped == nil {
		return
	}
	d.skipped.WithLabelValues(normalizeLabel(reason)).Inc()
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
