// Package metrics holds the Prometheus collectors of the service. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	adjustments      *prometheus.CounterVec
	adjustDuration   prometheus.Histogram
	rejections       *prometheus.CounterVec
	denials          *prometheus.CounterVec
	grpcRequests     *prometheus.CounterVec
	grpcDuration     *prometheus.HistogramVec
	compensationRuns *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		adjustments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_adjustments_total",
				Help: "Committed inventory adjustments by movement type",
			},
			[]string{"type"},
		),
		adjustDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "inventory_adjustment_duration_seconds",
				Help:    "Time from lock acquisition request to commit of an adjustment",
				Buckets: prometheus.DefBuckets,
			},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_adjustment_rejections_total",
				Help: "Adjustments that were not applied, by reason",
			},
			[]string{"reason"},
		),
		denials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authorization_denials_total",
				Help: "Requests refused by the permission table",
			},
			[]string{"role", "resource", "action"},
		),
		grpcRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_service_grpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method", "status_code"},
		),
		grpcDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_service_grpc_request_duration_seconds",
				Help:    "Duration of gRPC requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		compensationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_compensations_total",
				Help: "Multi-step writes that had to be compensated, by outcome",
			},
			[]string{"phase", "outcome"},
		),
	}

	reg.MustRegister(
		m.adjustments,
		m.adjustDuration,
		m.rejections,
		m.denials,
		m.grpcRequests,
		m.grpcDuration,
		m.compensationRuns,
	)
	return m
}

func (m *Metrics) ObserveAdjustment(movementType string, took time.Duration) {
	if m == nil {
		return
	}
	m.adjustments.WithLabelValues(movementType).Inc()
	m.adjustDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveDenial(role, resource, action string) {
	if m == nil {
		return
	}
	if role == "" {
		role = "anonymous"
	}
	m.denials.WithLabelValues(role, resource, action).Inc()
}

// ObserveCompensation counts a failed saga. outcome is "compensated" or "dirty".
func (m *Metrics) ObserveCompensation(phase string, compensated bool) {
	if m == nil {
		return
	}
	outcome := "compensated"
	if !compensated {
		outcome = "dirty"
	}
	m.compensationRuns.WithLabelValues(phase, outcome).Inc()
}
