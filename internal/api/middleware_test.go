// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/quillfeed/quillfeed/internal/config"
)

func TestRequestIDGenerated(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp, err := http.Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected a generated X-Request-ID header")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	f := newAPIFixture(t, nil)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/healthz", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Request-ID", "trace-me-123")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	env := decodeEnvelope(t, resp)

	if got := resp.Header.Get("X-Request-ID"); got != "trace-me-123" {
		t.Fatalf("X-Request-ID = %q, want trace-me-123", got)
	}
	if env.Meta == nil || env.Meta.RequestID != "trace-me-123" {
		t.Fatalf("expected request ID in meta, got %+v", env.Meta)
	}
}

func TestRateLimitRejects(t *testing.T) {
	f := newAPIFixture(t, func(cfg *config.Config) {
		cfg.Server.RateLimitReqs = 2
		cfg.Server.RateLimitWindow = time.Minute
	})

	var last int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(f.server.URL + "/api/v1/users/alice/preferences")
		if err != nil {
			t.Fatalf("GET preferences: %v", err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	f := newAPIFixture(t, func(cfg *config.Config) {
		cfg.Server.RateLimitReqs = 0
	})

	for i := 0; i < 10; i++ {
		resp, err := http.Get(f.server.URL + "/api/v1/users/alice/preferences")
		if err != nil {
			t.Fatalf("GET preferences: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatal("rate limiting should be disabled")
		}
	}
}
