// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/metrics"
	"github.com/quillfeed/quillfeed/internal/model"
)

func TestPublishMetricsGauges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := s.AtomicUpdate(ctx, fmt.Sprintf("user-%d", i), func(p *model.UserProfile) error {
			p.TopicPreferences["golang"] = model.TopicPreference{Weight: 0.5, Confidence: 0.3}
			return nil
		})
		if err != nil {
			t.Fatalf("seed profile %d: %v", i, err)
		}
	}

	if err := s.PublishMetrics(ctx); err != nil {
		t.Fatalf("PublishMetrics() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.StoreProfiles); got != 4 {
		t.Errorf("store_profiles gauge = %v, want 4", got)
	}
}

func TestPublishMetricsClosedStore(t *testing.T) {
	s, err := Open(config.StoreConfig{Path: ""}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := s.PublishMetrics(context.Background()); err != ErrStoreClosed {
		t.Errorf("PublishMetrics() error = %v, want ErrStoreClosed", err)
	}
}
