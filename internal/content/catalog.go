// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package content provides the recommendable-content catalog: lookup,
// candidate retrieval for ranking, and a resilience wrapper that keeps
// recommendations flowing on a degraded backend.
package content

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/quillfeed/quillfeed/internal/model"
)

// ErrContentNotFound is returned for unknown content IDs.
var ErrContentNotFound = errors.New("content: not found")

// Catalog is the read surface the recommenders rank from.
type Catalog interface {
	// Get returns one content item by ID.
	Get(ctx context.Context, contentID string) (*model.ContentItem, error)

	// Candidates returns up to limit recommendable items in the given
	// language. Empty language means all languages.
	Candidates(ctx context.Context, language string, limit int) ([]model.ContentItem, error)

	// Popular returns up to limit items ordered by popularity,
	// used for cold-start ranking.
	Popular(ctx context.Context, language string, limit int) ([]model.ContentItem, error)
}

// MemoryCatalog is an in-memory Catalog fed through Upsert, typically
// from the ingest endpoint after analysis.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]model.ContentItem
}

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{items: make(map[string]model.ContentItem)}
}

// Upsert adds or replaces an item.
func (c *MemoryCatalog) Upsert(item model.ContentItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
}

// Remove deletes an item; unknown IDs are a no-op.
func (c *MemoryCatalog) Remove(contentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, contentID)
}

// Len returns the item count.
func (c *MemoryCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get implements Catalog.
func (c *MemoryCatalog) Get(_ context.Context, contentID string) (*model.ContentItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[contentID]
	if !ok {
		return nil, ErrContentNotFound
	}
	return &item, nil
}

// Candidates implements Catalog. Results are ordered by ID so the
// candidate pool is stable across calls.
func (c *MemoryCatalog) Candidates(ctx context.Context, language string, limit int) ([]model.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	out := make([]model.ContentItem, 0, len(c.items))
	for _, item := range c.items {
		if language != "" && item.Language != language {
			continue
		}
		out = append(out, item)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Popular implements Catalog.
func (c *MemoryCatalog) Popular(ctx context.Context, language string, limit int) ([]model.ContentItem, error) {
	items, err := c.Candidates(ctx, language, 0)
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].PopularityScore != items[j].PopularityScore {
			return items[i].PopularityScore > items[j].PopularityScore
		}
		return items[i].ID < items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

var _ Catalog = (*MemoryCatalog)(nil)
