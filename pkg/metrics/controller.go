package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ControllerMetrics records per-iteration outcomes for the
// State-Handler Framework.
type ControllerMetrics struct {
	objectsProcessed *prometheus.CounterVec
	outcomes         *prometheus.CounterVec
	handlerErrors    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	slaBreaches      *prometheus.CounterVec
	allocAttempts    *prometheus.CounterVec
	allocExhausted   *prometheus.CounterVec
	hostInbandAmbig  *prometheus.CounterVec
}

// NewControllerMetrics creates the Prometheus-backed metrics instance,
// or nil if metrics are not enabled.
func NewControllerMetrics() *ControllerMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()
	return &ControllerMetrics{
		objectsProcessed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbide_objects_processed_total",
				Help: "Total objects dispatched per kind.",
			},
			[]string{"kind"},
		),
		outcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbide_outcomes_total",
				Help: "Total outcomes produced per kind and outcome kind.",
			},
			[]string{"kind", "outcome"},
		),
		handlerErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbide_handler_errors_total",
				Help: "Total handler errors per kind and metric label.",
			},
			[]string{"kind", "label"},
		),
		dispatchDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "carbide_dispatch_duration_milliseconds",
				Help:    "Duration of one handler dispatch in milliseconds.",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"kind"},
		),
		slaBreaches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbide_sla_breaches_total",
				Help: "Total objects found past their per-state SLA window.",
			},
			[]string{"kind", "state"},
		),
		allocAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbide_ip_allocation_attempts_total",
				Help: "Total IP allocation attempts per segment.",
			},
			[]string{"segment_id"},
		),
		allocExhausted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbide_ip_allocation_exhausted_total",
				Help: "Total IP allocation attempts that exhausted the prefix.",
			},
			[]string{"segment_id"},
		),
		hostInbandAmbig: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbide_host_inband_ambiguous_total",
				Help: "Total host-inband provisions where more than one existing interface matched the segment's prefix.",
			},
			[]string{"segment_id"},
		),
	}
}

// RecordDispatch records a completed handler dispatch.
func (m *ControllerMetrics) RecordDispatch(kind, outcomeKind string, d time.Duration) {
	if m == nil {
		return
	}
	m.objectsProcessed.WithLabelValues(kind).Inc()
	m.outcomes.WithLabelValues(kind, outcomeKind).Inc()
	m.dispatchDuration.WithLabelValues(kind).Observe(float64(d.Microseconds()) / 1000.0)
}

// RecordHandlerError records a handler error by its metric label.
func (m *ControllerMetrics) RecordHandlerError(kind, label string) {
	if m == nil {
		return
	}
	m.handlerErrors.WithLabelValues(kind, label).Inc()
}

// RecordSlaBreach records an object found past its SLA window for state.
func (m *ControllerMetrics) RecordSlaBreach(kind, state string) {
	if m == nil {
		return
	}
	m.slaBreaches.WithLabelValues(kind, state).Inc()
}

// RecordAllocationAttempt records one PAE allocation call for segmentID.
func (m *ControllerMetrics) RecordAllocationAttempt(segmentID string, exhausted bool) {
	if m == nil {
		return
	}
	m.allocAttempts.WithLabelValues(segmentID).Inc()
	if exhausted {
		m.allocExhausted.WithLabelValues(segmentID).Inc()
	}
}

// RecordHostInbandAmbiguous records a host-inband provision where more
// than one existing interface address matched the segment's prefix
// and the lowest was picked instead of failing outright.
func (m *ControllerMetrics) RecordHostInbandAmbiguous(segmentID string) {
	if m == nil {
		return
	}
	m.hostInbandAmbig.WithLabelValues(segmentID).Inc()
}
