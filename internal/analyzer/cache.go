// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package analyzer

import (
	"sync"
	"time"

	"github.com/quillfeed/quillfeed/internal/model"
)

// cacheEntry is a node in the analysis cache's doubly-linked list.
type cacheEntry struct {
	key       string
	value     *model.Analysis
	prev      *cacheEntry
	next      *cacheEntry
	expiresAt time.Time
}

// analysisCache is a thread-safe LRU with TTL for analysis results.
// A hashmap gives O(1) lookup and a doubly-linked list with sentinel
// head/tail gives O(1) promotion and eviction.
type analysisCache struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration

	items map[string]*cacheEntry
	head  *cacheEntry
	tail  *cacheEntry

	hits   int64
	misses int64
}

func newAnalysisCache(capacity int, ttl time.Duration) *analysisCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	c := &analysisCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*cacheEntry, capacity),
		head:     &cacheEntry{},
		tail:     &cacheEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// get returns a copy of the cached analysis so callers cannot mutate
// the shared entry. Found entries move to the front.
func (c *analysisCache) get(key string) (*model.Analysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		return nil, false
	}

	c.moveToFront(entry)
	c.hits++
	return copyAnalysis(entry.value), true
}

func (c *analysisCache) add(key string, analysis *model.Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		entry.value = copyAnalysis(analysis)
		entry.expiresAt = time.Now().Add(c.ttl)
		c.moveToFront(entry)
		return
	}

	if len(c.items) >= c.capacity {
		c.removeEntry(c.tail.prev)
	}

	entry := &cacheEntry{
		key:       key,
		value:     copyAnalysis(analysis),
		expiresAt: time.Now().Add(c.ttl),
	}
	c.items[key] = entry
	c.pushFront(entry)
}

func (c *analysisCache) stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *analysisCache) pushFront(entry *cacheEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *analysisCache) moveToFront(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.pushFront(entry)
}

func (c *analysisCache) removeEntry(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func copyAnalysis(a *model.Analysis) *model.Analysis {
	out := &model.Analysis{
		ReadingLevelScore: a.ReadingLevelScore,
		LowConfidence:     a.LowConfidence,
	}
	if a.TopicScores != nil {
		out.TopicScores = make(map[string]float64, len(a.TopicScores))
		for k, v := range a.TopicScores {
			out.TopicScores[k] = v
		}
	}
	if a.Embedding != nil {
		out.Embedding = append([]float64(nil), a.Embedding...)
	}
	if a.KeyPhrases != nil {
		out.KeyPhrases = append([]string(nil), a.KeyPhrases...)
	}
	return out
}
