// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics collects and exposes Prometheus counters for the auth subsystem.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records authentication, token and reset events.
//
// It satisfies both auth.Recorder and middleware.FailureRecorder.
type Collector struct {
	signups       prometheus.Counter
	logins        *prometheus.CounterVec
	tokenFailures *prometheus.CounterVec
	resetEvents   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its counters on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecgscan_auth_signups_total",
			Help: "Number of identities created through signup.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecgscan_auth_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		tokenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecgscan_auth_token_failures_total",
			Help: "Rejected bearer tokens by failure kind.",
		}, []string{"kind"}),
		resetEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecgscan_auth_reset_events_total",
			Help: "Password reset lifecycle events.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		c.signups,
		c.logins,
		c.tokenFailures,
		c.resetEvents,
	)

	return c
}

// RecordSignup counts one created identity.
func (c *Collector) RecordSignup() {
	c.signups.Inc()
}

// RecordLogin counts a login attempt ("success" or "failure").
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordTokenFailure counts a rejected token.
func (c *Collector) RecordTokenFailure(kind string) {
	c.tokenFailures.WithLabelValues(kind).Inc()
}

// RecordResetEvent counts a reset lifecycle event (requested, reused, verified, finalized, ...).
func (c *Collector) RecordResetEvent(event string) {
	c.resetEvents.WithLabelValues(event).Inc()
}

// Handler returns the scrape handler for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
