// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package scoring implements the interest scorer: a pure, deterministic
// mapping from (profile, content) to a bounded interest score. The
// scorer holds no state and performs no I/O, so identical inputs always
// produce identical scores and explanations.
package scoring

import (
	"sort"

	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/model"
)

// TypeTagPrefix marks content-type affinity keys inside a profile's
// contextual preferences ("type:article", "type:longform").
const TypeTagPrefix = "type:"

// Scorer computes interest scores from configured factor shares.
type Scorer struct {
	topicShare float64
	typeShare  float64
	levelShare float64

	abovePenalty float64
	belowPenalty float64
}

// New creates a Scorer with shares normalized to sum to 1.
func New(cfg config.ScoringConfig) *Scorer {
	sum := cfg.TopicShare + cfg.TypeShare + cfg.LevelShare
	if sum <= 0 {
		// Degenerate config; fall back to topic-only scoring.
		return &Scorer{topicShare: 1, abovePenalty: cfg.AbovePenaltyPerBand, belowPenalty: cfg.BelowPenaltyPerBand}
	}

	return &Scorer{
		topicShare:   cfg.TopicShare / sum,
		typeShare:    cfg.TypeShare / sum,
		levelShare:   cfg.LevelShare / sum,
		abovePenalty: cfg.AbovePenaltyPerBand,
		belowPenalty: cfg.BelowPenaltyPerBand,
	}
}

// Score returns the interest score in [0, 1] and the per-factor
// breakdown used for explanations.
func (s *Scorer) Score(profile *model.UserProfile, content *model.ContentItem) (float64, []model.ScoreFactor) {
	topicMatch := s.topicMatch(profile, content)
	typeAffinity := s.typeAffinity(profile, content)
	levelFit := s.ReadingLevelFit(profile, content)

	score := s.topicShare*topicMatch + s.typeShare*typeAffinity + s.levelShare*levelFit

	factors := []model.ScoreFactor{
		{Name: "topic_match", Value: topicMatch},
		{Name: "type_affinity", Value: typeAffinity},
		{Name: "reading_level_fit", Value: levelFit},
	}

	return model.ClampUnit(score), factors
}

// topicMatch maps the weighted topic overlap to [0, 1]. Topics are
// visited in sorted order so floating-point summation is reproducible.
func (s *Scorer) topicMatch(profile *model.UserProfile, content *model.ContentItem) float64 {
	if len(content.TopicScores) == 0 {
		return 0.5 // No topic signal either way.
	}

	topics := make([]string, 0, len(content.TopicScores))
	for topic := range content.TopicScores {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	var weighted, total float64
	for _, topic := range topics {
		contentScore := content.TopicScores[topic]
		if contentScore <= 0 {
			continue
		}
		var weight float64
		if pref, ok := profile.TopicPreferences[topic]; ok {
			if weight = pref.Weight; weight > 1 {
				weight = 1
			}
		}
		weighted += weight * contentScore
		total += contentScore
	}

	if total == 0 {
		return 0.5
	}

	// weighted/total lies in [-1, 1]; map to [0, 1] so a neutral
	// profile scores in the middle rather than at the floor.
	return model.ClampUnit((weighted/total + 1) / 2)
}

// typeAffinity averages learned content-type affinities over the
// item's tags, again in sorted order for determinism.
func (s *Scorer) typeAffinity(profile *model.UserProfile, content *model.ContentItem) float64 {
	if len(content.Tags) == 0 {
		return 0.5
	}

	tags := make([]string, len(content.Tags))
	copy(tags, content.Tags)
	sort.Strings(tags)

	var sum float64
	var n int
	for _, tag := range tags {
		weight, ok := profile.ContextualPreferences[TypeTagPrefix+tag]
		if !ok {
			continue
		}
		sum += model.ClampUnit((weight + 1) / 2)
		n++
	}

	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

// ReadingLevelFit returns 1 minus the asymmetric level penalty.
// Content above the user's level is penalized more heavily than
// content below it; below-level content is comfortable, not wasted.
func (s *Scorer) ReadingLevelFit(profile *model.UserProfile, content *model.ContentItem) float64 {
	userLevel := profile.ReadingLevelFor(content.Language).Level

	diff := content.ReadingLevelScore - userLevel
	var penalty float64
	if diff > 0 {
		penalty = diff * s.abovePenalty
	} else {
		penalty = -diff * s.belowPenalty
	}

	return model.ClampUnit(1 - penalty)
}

// LevelMismatch reports whether the content's reading level exceeds the
// user's assessed level by more than one band.
func LevelMismatch(profile *model.UserProfile, content *model.ContentItem) bool {
	userLevel := profile.ReadingLevelFor(content.Language).Level
	return content.ReadingLevelScore-userLevel > 1
}
