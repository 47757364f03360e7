// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package recommend

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quillfeed/quillfeed/internal/model"
)

// cacheKey builds a deterministic key from the ranking-relevant request
// fields. The user ID leads so per-user invalidation can prefix-match.
func cacheKey(req *model.RecommendationRequest, limit int) string {
	var b strings.Builder
	b.WriteString(req.UserID)
	b.WriteByte('\x00')
	b.WriteString(req.Language)
	fmt.Fprintf(&b, "\x00%d", limit)
	if req.Context != nil {
		fmt.Fprintf(&b, "\x00%s|%s|%s|%s|%d",
			req.Context.TimeOfDay, req.Context.DeviceType,
			req.Context.Location, req.Context.Mood,
			req.Context.AvailableTime/time.Minute)
	}
	return b.String()
}

// responseCache is a TTL cache for recommendation sets. Entries are
// copied on the way in and out; eviction removes the oldest entry when
// the cap is reached.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]responseEntry
	max     int
	ttl     time.Duration
}

type responseEntry struct {
	set      *model.RecommendationSet
	storedAt time.Time
}

func newResponseCache(max int, ttl time.Duration) *responseCache {
	if max <= 0 {
		max = 1024
	}
	return &responseCache{
		entries: make(map[string]responseEntry, max),
		max:     max,
		ttl:     ttl,
	}
}

func (c *responseCache) get(key string) (*model.RecommendationSet, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return copySet(entry.set), true
}

func (c *responseCache) add(key string, set *model.RecommendationSet) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.max {
		var oldestKey string
		var oldestAt time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.storedAt.Before(oldestAt) {
				oldestKey, oldestAt = k, e.storedAt
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[key] = responseEntry{set: copySet(set), storedAt: time.Now()}
}

// invalidateUser removes every cached set for the user.
func (c *responseCache) invalidateUser(userID string) {
	prefix := userID + "\x00"

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func copySet(set *model.RecommendationSet) *model.RecommendationSet {
	out := *set
	out.Results = make([]model.RecommendationResult, len(set.Results))
	copy(out.Results, set.Results)
	out.RelaxedConstraints = append([]string(nil), set.RelaxedConstraints...)
	return &out
}
