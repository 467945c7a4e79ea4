// Package metrics records build and evaluation activity for Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"groups/solver"
)

type Metrics struct {
	Builds      *prometheus.CounterVec
	BuildErrors *prometheus.CounterVec
	Invalid     *prometheus.CounterVec
	Cost        *prometheus.HistogramVec
	Terms       *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groups",
			Name:      "builds_total",
			Help:      "Solutions built, by build mode.",
		}, []string{"mode"}),
		BuildErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groups",
			Name:      "build_errors_total",
			Help:      "Builds rejected before placement, by build mode.",
		}, []string{"mode"}),
		Invalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groups",
			Name:      "invalid_solutions_total",
			Help:      "Solutions failing validation, by failed check.",
		}, []string{"check"}),
		Cost: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "groups",
			Name:      "solution_cost",
			Help:      "Total cost of evaluated solutions.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}, []string{"mode"}),
		Terms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "groups",
			Name:      "last_cost_term",
			Help:      "Cost terms of the most recently evaluated solution.",
		}, []string{"term"}),
	}
	reg.MustRegister(m.Builds, m.BuildErrors, m.Invalid, m.Cost, m.Terms)
	return m
}

func (m *Metrics) ObserveBuild(mode solver.Mode, err error) {
	if err != nil {
		m.BuildErrors.WithLabelValues(mode.String()).Inc()
		return
	}
	m.Builds.WithLabelValues(mode.String()).Inc()
}

func (m *Metrics) ObserveValidation(err error) {
	if err == nil {
		return
	}
	check := "unknown"
	var verr *solver.ValidationError
	if errors.As(err, &verr) {
		check = verr.Check
	}
	m.Invalid.WithLabelValues(check).Inc()
}

func (m *Metrics) ObserveCost(mode solver.Mode, b solver.Breakdown) {
	m.Cost.WithLabelValues(mode.String()).Observe(b.Total)
	m.Terms.WithLabelValues("performance").Set(b.Performance)
	m.Terms.WithLabelValues("cohesion").Set(b.Cohesion)
	m.Terms.WithLabelValues("workload").Set(b.Workload)
}
