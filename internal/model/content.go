// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package model

import "time"

// ContentItem is a unit of recommendable reading content with its
// analyzer-derived features.
type ContentItem struct {
	// ID is the unique content identifier.
	ID string `json:"id"`

	// Language is the content language code ("en", "ja").
	Language string `json:"language"`

	// TopicScores maps topic ID to relevance in [0, 1].
	TopicScores map[string]float64 `json:"topic_scores"`

	// ReadingLevelScore is the language-specific difficulty on the
	// ordinal scale (LevelBeginner..LevelNative, fractional allowed).
	ReadingLevelScore float64 `json:"reading_level_score"`

	// Embedding is the fixed-length semantic vector for the content.
	Embedding []float64 `json:"embedding,omitempty"`

	// EstimatedReadingTime is the predicted time to read the item.
	EstimatedReadingTime time.Duration `json:"estimated_reading_time"`

	// Tags are free-form labels (content type, format, source).
	Tags []string `json:"tags,omitempty"`

	// PopularityScore is a pre-computed global popularity metric,
	// used for cold-start ranking.
	PopularityScore float64 `json:"popularity_score,omitempty"`
}

// DominantTopic returns the topic with the highest score, or "" for
// content with no topic scores. Ties break lexicographically so the
// result is deterministic.
func (c *ContentItem) DominantTopic() string {
	best := ""
	bestScore := -1.0
	for topic, score := range c.TopicScores {
		if score > bestScore || (score == bestScore && topic < best) {
			best = topic
			bestScore = score
		}
	}
	return best
}

// HasTag reports whether the item carries the given tag.
func (c *ContentItem) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Analysis is the output of a content analyzer for one piece of text.
type Analysis struct {
	// TopicScores maps topic ID to relevance in [0, 1].
	TopicScores map[string]float64 `json:"topic_scores"`

	// ReadingLevelScore is the language-specific difficulty score.
	ReadingLevelScore float64 `json:"reading_level_score"`

	// Embedding is the semantic vector for the text.
	Embedding []float64 `json:"embedding,omitempty"`

	// KeyPhrases are the salient phrases extracted from the text.
	KeyPhrases []string `json:"key_phrases,omitempty"`

	// LowConfidence marks results produced by a degraded path
	// (analyzer timeout, keyword fallback).
	LowConfidence bool `json:"low_confidence,omitempty"`
}
