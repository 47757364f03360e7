// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/recommendations", "200"))

	RecordAPIRequest("GET", "/api/v1/recommendations", "200", 25*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/recommendations", "200"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	base := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != base+1 {
		t.Fatalf("expected gauge %v, got %v", base+1, got)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != base {
		t.Fatalf("expected gauge %v, got %v", base, got)
	}
}

func TestRecordFold(t *testing.T) {
	failuresBefore := testutil.ToFloat64(FeedbackFoldFailures)

	RecordFold(3*time.Millisecond, nil)
	if got := testutil.ToFloat64(FeedbackFoldFailures); got != failuresBefore {
		t.Fatalf("successful fold must not count as failure: %v -> %v", failuresBefore, got)
	}

	RecordFold(3*time.Millisecond, errors.New("profile conflict"))
	if got := testutil.ToFloat64(FeedbackFoldFailures); got != failuresBefore+1 {
		t.Fatalf("failed fold should increment failures: %v -> %v", failuresBefore, got)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hitsBefore := testutil.ToFloat64(CacheHits.WithLabelValues("response"))
	missesBefore := testutil.ToFloat64(CacheMisses.WithLabelValues("response"))

	RecordCacheLookup("response", true)
	RecordCacheLookup("response", false)
	RecordCacheLookup("response", false)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("response")); got != hitsBefore+1 {
		t.Fatalf("expected 1 new hit, got %v -> %v", hitsBefore, got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("response")); got != missesBefore+2 {
		t.Fatalf("expected 2 new misses, got %v -> %v", missesBefore, got)
	}
}

func TestSetBreakerState(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"unknown", 0},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			SetBreakerState("en", tt.state)
			if got := testutil.ToFloat64(AnalyzerBreakerState.WithLabelValues("en")); got != tt.want {
				t.Fatalf("state %q: expected %v, got %v", tt.state, tt.want, got)
			}
		})
	}
}
