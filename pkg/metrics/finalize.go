package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FinalizeMetrics records document commits.
type FinalizeMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewFinalizeMetrics registers the finalize metrics on the provided registerer.
func NewFinalizeMetrics(reg prometheus.Registerer) *FinalizeMetrics {
	if reg == nil {
		return &FinalizeMetrics{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_finalize_total",
		Help: "Finalize attempts by document type and result.",
	}, []string{"type", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "document_finalize_duration_seconds",
		Help:    "Duration of document finalization in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	reg.MustRegister(total, duration)
	return &FinalizeMetrics{total: total, duration: duration}
}

// Observe records one finalize attempt.
func (f *FinalizeMetrics) Observe(docType string, duration time.Duration, err error) {
	if f == nil || f.total == nil {
		return
	}
	docType = normalizeLabel(docType)
	f.total.WithLabelValues(docType, result(err)).Inc()
	f.duration.WithLabelValues(docType).Observe(duration.Seconds())
}
