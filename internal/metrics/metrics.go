// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

// Package metrics registers the Prometheus collectors exported on /metrics.
//
// Collectors are package-level promauto vars; callers use the Record*
// helpers so label cardinality stays under this package's control.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Rejected requests by authentication failure reason",
		},
		[]string{"reason"}, // missing, malformed, expired, invalid, unavailable
	)

	// Upstream Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of requests sent to atomic services",
		},
		[]string{"service", "method", "outcome"}, // outcome: status code, timeout, unreachable
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of requests to atomic services in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "method"},
	)

	IdentityTokenFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_token_fetches_total",
			Help: "Service identity token fetches (cache misses)",
		},
		[]string{"result"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Aggregation Metrics
	AggregationBranchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregation_branch_duration_seconds",
			Help:    "Duration of one fan-out branch in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"branch"},
	)

	AggregationBranchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_branch_failures_total",
			Help: "Fan-out branches that completed with an error",
		},
		[]string{"branch"},
	)

	UsersProvisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "users_provisioned_total",
			Help: "Internal users created by automatic provisioning",
		},
	)

	// Messaging Metrics
	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_published_total",
			Help: "Domain events published, by topic and result",
		},
		[]string{"topic", "result"}, // result: success, failure
	)

	MessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_consumed_total",
			Help: "Domain events consumed, by subscription and outcome",
		},
		[]string{"subscription", "outcome"}, // outcome: ack, nack, skip
	)

	MessageProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "message_processing_duration_seconds",
			Help:    "Duration of domain event handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subscription"},
	)

	// Email Metrics
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Notification emails, by kind and result",
		},
		[]string{"kind", "result"},
	)
)

// RecordAPIRequest records API request metrics.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAuthFailure counts a rejected credential.
func RecordAuthFailure(reason string) {
	AuthFailures.WithLabelValues(reason).Inc()
}

// RecordUpstreamRequest records one call to an atomic service. status is the
// HTTP status when a response arrived; otherwise outcome names the failure.
func RecordUpstreamRequest(service, method string, status int, outcome string, duration time.Duration) {
	if status > 0 {
		outcome = strconv.Itoa(status)
	}
	UpstreamRequestsTotal.WithLabelValues(service, method, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordIdentityTokenFetch counts a service identity token fetch.
func RecordIdentityTokenFetch(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	IdentityTokenFetches.WithLabelValues(result).Inc()
}

// RecordCircuitBreakerTransition updates state gauges on a transition.
// States follow gobreaker's numbering: 0 closed, 1 half-open, 2 open.
func RecordCircuitBreakerTransition(name, from, to string, toState int) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(float64(toState))
}

// RecordCircuitBreakerRequest counts a request through a breaker.
func RecordCircuitBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordAggregationBranch records one fan-out branch outcome.
func RecordAggregationBranch(branch string, duration time.Duration, err error) {
	AggregationBranchDuration.WithLabelValues(branch).Observe(duration.Seconds())
	if err != nil {
		AggregationBranchFailures.WithLabelValues(branch).Inc()
	}
}

// RecordUserProvisioned counts an auto-provisioned user.
func RecordUserProvisioned() {
	UsersProvisioned.Inc()
}

// RecordPublish counts a publish attempt.
func RecordPublish(topic string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	MessagesPublished.WithLabelValues(topic, result).Inc()
}

// RecordConsume counts a handled message and its processing time.
func RecordConsume(subscription, outcome string, duration time.Duration) {
	MessagesConsumed.WithLabelValues(subscription, outcome).Inc()
	MessageProcessingDuration.WithLabelValues(subscription).Observe(duration.Seconds())
}

// RecordEmail counts a notification email attempt.
func RecordEmail(kind string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EmailsSent.WithLabelValues(kind, result).Inc()
}
