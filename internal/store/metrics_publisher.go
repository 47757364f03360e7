// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// MetricsPublisher refreshes the store gauges on an interval. It
// implements suture.Service and runs under the processing layer.
type MetricsPublisher struct {
	store    *BadgerStore
	interval time.Duration
	logger   zerolog.Logger
}

// NewMetricsPublisher creates a publisher for the store's gauges.
func NewMetricsPublisher(st *BadgerStore, interval time.Duration, logger zerolog.Logger) *MetricsPublisher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &MetricsPublisher{
		store:    st,
		interval: interval,
		logger:   logger.With().Str("component", "store_metrics").Logger(),
	}
}

// Serve publishes once immediately, then on every tick until ctx is
// done.
func (m *MetricsPublisher) Serve(ctx context.Context) error {
	if err := m.store.PublishMetrics(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("store metrics refresh failed")
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.store.PublishMetrics(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("store metrics refresh failed")
			}
		}
	}
}

func (m *MetricsPublisher) String() string { return "store-metrics" }
