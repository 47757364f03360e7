// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package content

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/metrics"
	"github.com/quillfeed/quillfeed/internal/model"
)

// ResilientCatalog bounds every candidate query with a deadline and
// falls back to the last good candidate set when the backing catalog is
// slow or failing. Stale results are flagged so responses can carry an
// incompleteness marker instead of failing outright.
type ResilientCatalog struct {
	inner  Catalog
	cfg    config.ContentConfig
	logger zerolog.Logger

	mu     sync.RWMutex
	cached map[string]cachedCandidates
}

type cachedCandidates struct {
	items    []model.ContentItem
	storedAt time.Time
}

// NewResilientCatalog wraps a Catalog.
func NewResilientCatalog(inner Catalog, cfg config.ContentConfig, logger zerolog.Logger) *ResilientCatalog {
	return &ResilientCatalog{
		inner:  inner,
		cfg:    cfg,
		logger: logger.With().Str("component", "content_catalog").Logger(),
		cached: make(map[string]cachedCandidates),
	}
}

// Get passes through with the query deadline applied.
func (r *ResilientCatalog) Get(ctx context.Context, contentID string) (*model.ContentItem, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()
	return r.inner.Get(queryCtx, contentID)
}

// Candidates queries the backing catalog under the configured deadline.
// On success the result refreshes the per-language cache; on failure a
// non-expired cached set is served with stale=true. Both failing is an
// error the caller must surface.
func (r *ResilientCatalog) Candidates(ctx context.Context, language string, limit int) (items []model.ContentItem, stale bool, err error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	items, err = r.inner.Candidates(queryCtx, language, limit)
	if err == nil {
		r.storeCache(language, items)
		return items, false, nil
	}

	r.logger.Warn().Err(err).Str("language", language).Msg("candidate query failed, trying cache")

	if cached, ok := r.loadCache(language); ok {
		metrics.RecordCacheLookup("candidate", true)
		if limit > 0 && len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, true, nil
	}
	metrics.RecordCacheLookup("candidate", false)
	return nil, false, err
}

// Popular passes through with the query deadline applied. Cold-start
// requests fail fast rather than serving stale popularity.
func (r *ResilientCatalog) Popular(ctx context.Context, language string, limit int) ([]model.ContentItem, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()
	return r.inner.Popular(queryCtx, language, limit)
}

func (r *ResilientCatalog) storeCache(language string, items []model.ContentItem) {
	copied := make([]model.ContentItem, len(items))
	copy(copied, items)

	r.mu.Lock()
	r.cached[language] = cachedCandidates{items: copied, storedAt: time.Now()}
	r.mu.Unlock()
}

func (r *ResilientCatalog) loadCache(language string) ([]model.ContentItem, bool) {
	r.mu.RLock()
	entry, ok := r.cached[language]
	r.mu.RUnlock()

	if !ok || time.Since(entry.storedAt) > r.cfg.CandidateCacheTTL {
		return nil, false
	}

	out := make([]model.ContentItem, len(entry.items))
	copy(out, entry.items)
	return out, true
}
