// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package discovery recommends content deliberately outside a user's
// established preferences. Divergence is bounded by a per-user comfort
// band and never sacrifices comprehensibility: a candidate the user
// cannot comfortably read is excluded no matter how interesting the
// topical stretch would be.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/content"
	"github.com/quillfeed/quillfeed/internal/model"
	"github.com/quillfeed/quillfeed/internal/scoring"
	"github.com/quillfeed/quillfeed/internal/store"
)

// Engine produces discovery recommendations.
type Engine struct {
	cfg     config.DiscoveryConfig
	scorer  *scoring.Scorer
	catalog *content.ResilientCatalog
	store   store.ProfileStore
	logger  zerolog.Logger
}

// NewEngine creates a discovery Engine.
func NewEngine(
	cfg config.DiscoveryConfig,
	scorer *scoring.Scorer,
	catalog *content.ResilientCatalog,
	st store.ProfileStore,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:     cfg,
		scorer:  scorer,
		catalog: catalog,
		store:   st,
		logger:  logger.With().Str("component", "discovery_engine").Logger(),
	}
}

// Discover returns up to limit divergent-but-accessible recommendations.
// Users with no explored topics yet get a purely exploratory list
// instead of an empty band-filtered one.
func (e *Engine) Discover(ctx context.Context, userID, language string, limit int) ([]model.DiscoveryRecommendation, error) {
	if limit <= 0 {
		limit = 5
	}

	profile, err := e.store.Read(ctx, userID)
	if errors.Is(err, store.ErrProfileNotFound) {
		profile = model.NewUserProfile(userID)
	} else if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	explored := exploredTopics(profile, e.cfg.ExploredConfidence)
	if len(explored) == 0 {
		return e.exploratory(ctx, profile, language, limit)
	}

	candidates, _, err := e.catalog.Candidates(ctx, language, 0)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	band := profile.DivergenceBand
	if band.Max == 0 {
		band.Min, band.Max = e.cfg.MinDivergence, e.cfg.MaxDivergence
	}

	recs := make([]model.DiscoveryRecommendation, 0, limit)
	type scored struct {
		rec   model.DiscoveryRecommendation
		topic string
	}
	var pool []scored

	for _, item := range candidates {
		// An item mostly about an explored topic is not a discovery,
		// even when minor unexplored tags push it inside the band.
		if dominantlyExplored(explored, &item) {
			continue
		}
		divergence := e.divergence(profile, explored, &item)
		if divergence < band.Min || divergence > band.Max {
			continue
		}
		if e.scorer.ReadingLevelFit(profile, &item) < e.cfg.AccessibilityThreshold {
			continue
		}

		bridges := bridgingTopics(explored, &item, e.cfg.BridgeMinScore)
		pool = append(pool, scored{
			rec: model.DiscoveryRecommendation{
				ContentID:       item.ID,
				DivergenceScore: divergence,
				BridgingTopics:  bridges,
				Reason:          discoveryReason(bridges, item.DominantTopic()),
			},
			topic: item.DominantTopic(),
		})
	}

	// Highest divergence inside the band first, then spread dominant
	// topics so one unexplored area does not fill the list.
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].rec.DivergenceScore != pool[j].rec.DivergenceScore {
			return pool[i].rec.DivergenceScore > pool[j].rec.DivergenceScore
		}
		return pool[i].rec.ContentID < pool[j].rec.ContentID
	})

	seen := make(map[string]bool)
	for _, s := range pool {
		if len(recs) >= limit {
			break
		}
		if s.topic != "" && seen[s.topic] {
			continue
		}
		seen[s.topic] = true
		recs = append(recs, s.rec)
	}
	// Backfill when topic spreading left room.
	if len(recs) < limit {
		picked := make(map[string]bool, len(recs))
		for _, r := range recs {
			picked[r.ContentID] = true
		}
		for _, s := range pool {
			if len(recs) >= limit {
				break
			}
			if !picked[s.rec.ContentID] {
				recs = append(recs, s.rec)
			}
		}
	}

	return recs, nil
}

// exploratory serves users with no explored topics yet: popular items
// across topics, with no band filtering to fail. Accessibility still
// holds; a cold-start reader gets the neutral reading level, not a pass.
func (e *Engine) exploratory(ctx context.Context, profile *model.UserProfile, language string, limit int) ([]model.DiscoveryRecommendation, error) {
	popular, err := e.catalog.Popular(ctx, language, limit*3)
	if err != nil {
		return nil, fmt.Errorf("load popular: %w", err)
	}

	recs := make([]model.DiscoveryRecommendation, 0, limit)
	seen := make(map[string]bool)
	for _, item := range popular {
		if len(recs) >= limit {
			break
		}
		if e.scorer.ReadingLevelFit(profile, &item) < e.cfg.AccessibilityThreshold {
			continue
		}
		topic := item.DominantTopic()
		if topic != "" && seen[topic] {
			continue
		}
		seen[topic] = true
		recs = append(recs, model.DiscoveryRecommendation{
			ContentID:       item.ID,
			DivergenceScore: 0,
			Reason:          "a popular read to help us learn what you like",
			Exploratory:     true,
		})
	}
	return recs, nil
}

// divergence measures how far the item sits from the user's explored
// territory: the share of topical mass outside explored topics, blended
// with a novelty term for content types the user has not tried.
func (e *Engine) divergence(profile *model.UserProfile, explored map[string]bool, item *model.ContentItem) float64 {
	var exploredMass, totalMass float64
	for topic, score := range item.TopicScores {
		if score <= 0 {
			continue
		}
		totalMass += score
		if explored[topic] {
			exploredMass += score
		}
	}

	topical := 1.0
	if totalMass > 0 {
		topical = 1 - exploredMass/totalMass
	}

	novelty := 0.0
	if len(item.Tags) > 0 {
		untried := 0
		for _, tag := range item.Tags {
			if _, ok := profile.ContextualPreferences[scoring.TypeTagPrefix+tag]; !ok {
				untried++
			}
		}
		novelty = float64(untried) / float64(len(item.Tags))
	}

	return model.ClampUnit(topical*(1-e.cfg.NoveltyWeight) + novelty*e.cfg.NoveltyWeight)
}

// dominantlyExplored reports whether a strict majority of the item's
// topical mass sits on one explored topic. An even split still counts
// as a stretch.
func dominantlyExplored(explored map[string]bool, item *model.ContentItem) bool {
	var total float64
	for _, score := range item.TopicScores {
		if score > 0 {
			total += score
		}
	}
	if total == 0 {
		return false
	}
	dominant := item.DominantTopic()
	return explored[dominant] && item.TopicScores[dominant] > total/2
}

// exploredTopics returns topics whose confidence clears the threshold.
func exploredTopics(profile *model.UserProfile, threshold float64) map[string]bool {
	out := make(map[string]bool)
	for topic, pref := range profile.TopicPreferences {
		if pref.Confidence > threshold {
			out[topic] = true
		}
	}
	return out
}

// bridgingTopics lists explored topics the item still meaningfully
// covers, sorted by coverage.
func bridgingTopics(explored map[string]bool, item *model.ContentItem, minScore float64) []string {
	var bridges []string
	for topic := range explored {
		if item.TopicScores[topic] >= minScore {
			bridges = append(bridges, topic)
		}
	}
	sort.Slice(bridges, func(i, j int) bool {
		if item.TopicScores[bridges[i]] != item.TopicScores[bridges[j]] {
			return item.TopicScores[bridges[i]] > item.TopicScores[bridges[j]]
		}
		return bridges[i] < bridges[j]
	})
	return bridges
}

func discoveryReason(bridges []string, dominant string) string {
	switch {
	case len(bridges) > 0 && dominant != "":
		return fmt.Sprintf("because you read about %s, you might enjoy %s", strings.Join(bridges, " and "), dominant)
	case dominant != "":
		return fmt.Sprintf("something different: %s", dominant)
	default:
		return "something outside your usual reading"
	}
}
