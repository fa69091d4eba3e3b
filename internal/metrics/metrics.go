package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "lifecycle",
			Name:      "launches_total",
			Help:      "Number of service spawn attempts by outcome.",
		}, []string{"outcome"},
	)
	terminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "lifecycle",
			Name:      "terminations_total",
			Help:      "Number of service termination attempts by outcome.",
		}, []string{"outcome"},
	)
	handshakeReadFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "handshake",
			Name:      "read_failures_total",
			Help:      "Number of failed handshake file reads.",
		},
	)
	auditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "auditlog",
			Name:      "write_failures_total",
			Help:      "Number of failed audit log appends.",
		},
	)
	currentPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "lifecycle",
			Name:      "current_phase",
			Help:      "Current lifecycle phase (1 = active phase, 0 = inactive).",
		}, []string{"phase"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{launches, terminations, handshakeReadFailures, auditWriteFailures, currentPhase}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route and server.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncLaunch(outcome string) {
	if regOK.Load() {
		launches.WithLabelValues(outcome).Inc()
	}
}

func IncTermination(outcome string) {
	if regOK.Load() {
		terminations.WithLabelValues(outcome).Inc()
	}
}

func IncHandshakeReadFailure() {
	if regOK.Load() {
		handshakeReadFailures.Inc()
	}
}

func IncAuditWriteFailure() {
	if regOK.Load() {
		auditWriteFailures.Inc()
	}
}

// SetPhase marks phase as the single active lifecycle phase.
func SetPhase(phase string, all []string) {
	if !regOK.Load() {
		return
	}
	for _, p := range all {
		v := 0.0
		if p == phase {
			v = 1.0
		}
		currentPhase.WithLabelValues(p).Set(v)
	}
}
