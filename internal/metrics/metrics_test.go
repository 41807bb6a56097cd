// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/users/{user_id}/feed", "200"))

	RecordAPIRequest("GET", "/api/users/{user_id}/feed", "200", 25*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/users/{user_id}/feed", "200"))
	if after-before != 1 {
		t.Errorf("api_requests_total delta = %v, want 1", after-before)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("after inc = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("after dec = %v, want %v", got, before)
	}
}

func TestRecordUpstreamRequest_OutcomeLabel(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		outcome string
		label   string
	}{
		{"status wins", 404, "ignored", "404"},
		{"timeout", 0, "timeout", "timeout"},
		{"unreachable", 0, "unreachable", "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := UpstreamRequestsTotal.WithLabelValues("events", "GET", tt.label)
			before := testutil.ToFloat64(c)
			RecordUpstreamRequest("events", "GET", tt.status, tt.outcome, time.Millisecond)
			if got := testutil.ToFloat64(c) - before; got != 1 {
				t.Errorf("delta for label %q = %v, want 1", tt.label, got)
			}
		})
	}
}

func TestRecordAggregationBranch(t *testing.T) {
	failures := AggregationBranchFailures.WithLabelValues("test-branch")
	before := testutil.ToFloat64(failures)

	RecordAggregationBranch("test-branch", time.Millisecond, nil)
	RecordAggregationBranch("test-branch", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(failures) - before; got != 1 {
		t.Errorf("failures delta = %v, want 1", got)
	}

	var m dto.Metric
	hist, ok := AggregationBranchDuration.WithLabelValues("test-branch").(interface{ Write(*dto.Metric) error })
	if !ok {
		t.Fatal("histogram does not expose Write")
	}
	if err := hist.Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.GetHistogram().GetSampleCount() < 2 {
		t.Errorf("sample count = %d, want >= 2", m.GetHistogram().GetSampleCount())
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	RecordCircuitBreakerTransition("users", "closed", "open", 2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("users")); got != 2 {
		t.Errorf("state = %v, want 2", got)
	}
	RecordCircuitBreakerTransition("users", "open", "half-open", 1)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("users")); got != 1 {
		t.Errorf("state = %v, want 1", got)
	}
}

func TestRecordPublishAndConsume(t *testing.T) {
	ok := MessagesPublished.WithLabelValues("user-created", "success")
	failed := MessagesPublished.WithLabelValues("user-created", "failure")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordPublish("user-created", nil)
	RecordPublish("user-created", errors.New("broker down"))

	if testutil.ToFloat64(ok)-okBefore != 1 || testutil.ToFloat64(failed)-failedBefore != 1 {
		t.Error("publish counters did not move by one each")
	}

	nack := MessagesConsumed.WithLabelValues("user-welcome-sub", "nack")
	nackBefore := testutil.ToFloat64(nack)
	RecordConsume("user-welcome-sub", "nack", time.Millisecond)
	if testutil.ToFloat64(nack)-nackBefore != 1 {
		t.Error("consume counter did not move")
	}
}

func TestRecordEmail(t *testing.T) {
	c := EmailsSent.WithLabelValues("welcome", "failure")
	before := testutil.ToFloat64(c)
	RecordEmail("welcome", errors.New("smtp 421"))
	if testutil.ToFloat64(c)-before != 1 {
		t.Error("email failure counter did not move")
	}
}
