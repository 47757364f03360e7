// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package recommend ranks content for a user in a request context.
//
// The pipeline is: candidate retrieval, reading-time and level gates,
// base interest scoring, bounded contextual boosts, topic-diversity
// reranking. When the gates leave too few results, constraints are
// relaxed in a fixed order and the response reports which were dropped.
// Cold-start users get an exploratory set instead of a personalized one.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/content"
	"github.com/quillfeed/quillfeed/internal/metrics"
	"github.com/quillfeed/quillfeed/internal/model"
	"github.com/quillfeed/quillfeed/internal/scoring"
	"github.com/quillfeed/quillfeed/internal/store"
)

// ErrSuperseded is returned when a newer request for the same session
// arrived while this one was being computed.
var ErrSuperseded = errors.New("recommend: request superseded by a newer one in the same session")

// Relaxation step names reported in RecommendationSet.RelaxedConstraints.
const (
	RelaxContextBoosts = "context_boosts"
	RelaxTimeFilter    = "time_filter"
	RelaxLevelBand     = "level_band"
)

// Engine produces contextual recommendations.
type Engine struct {
	cfg     config.RecommendConfig
	scorer  *scoring.Scorer
	catalog *content.ResilientCatalog
	store   store.ProfileStore
	cache   *responseCache
	session *sessionTracker
	logger  zerolog.Logger
}

// NewEngine creates an Engine.
func NewEngine(
	cfg config.RecommendConfig,
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
		cache:   newResponseCache(cfg.CacheMaxEntries, cfg.CacheTTL),
		session: newSessionTracker(),
		logger:  logger.With().Str("component", "recommend_engine").Logger(),
	}
}

// Recommend returns the ranked set for one request.
func (e *Engine) Recommend(ctx context.Context, req *model.RecommendationRequest) (*model.RecommendationSet, error) {
	limit := e.normalizeLimit(req.Limit)

	// Last request wins per session: starting this computation cancels
	// any in-flight one for the same session.
	if req.SessionID != "" {
		var done func()
		ctx, done = e.session.begin(ctx, req.SessionID)
		defer done()
	}

	key := cacheKey(req, limit)
	if cached, ok := e.cache.get(key); ok {
		metrics.RecordCacheLookup("response", true)
		cached.RequestID = req.RequestID
		return cached, nil
	}
	metrics.RecordCacheLookup("response", false)

	profile, err := e.store.Read(ctx, req.UserID)
	if errors.Is(err, store.ErrProfileNotFound) {
		profile = model.NewUserProfile(req.UserID)
	} else if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var set *model.RecommendationSet
	if profile.EventCount < int64(e.cfg.ColdStartEventThreshold) {
		set, err = e.exploratorySet(ctx, req, limit)
	} else {
		set, err = e.personalizedSet(ctx, req, profile, limit)
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) && req.SessionID != "" && !e.session.isCurrent(req.SessionID, ctx) {
			return nil, ErrSuperseded
		}
		return nil, err
	}

	set.RequestID = req.RequestID
	set.GeneratedAt = time.Now().UTC()
	e.cache.add(key, set)
	return set, nil
}

// InvalidateUser drops cached responses for a user so fresh feedback
// shows up without waiting out the TTL.
func (e *Engine) InvalidateUser(userID string) {
	e.cache.invalidateUser(userID)
}

func (e *Engine) normalizeLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		return e.cfg.MaxLimit
	}
	return limit
}

// personalizedSet runs the full pipeline for a known user.
func (e *Engine) personalizedSet(ctx context.Context, req *model.RecommendationRequest, profile *model.UserProfile, limit int) (*model.RecommendationSet, error) {
	candidates, stale, err := e.catalog.Candidates(ctx, req.Language, e.cfg.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	set := &model.RecommendationSet{Incomplete: stale}

	reqCtx, inferred := e.resolveContext(ctx, req, profile)
	if reqCtx.Empty() && !inferred {
		set.Uncontextualized = true
	}

	scored := e.scoreAll(profile, candidates)

	// Constraint relaxation: try the strictest pipeline first, then
	// drop constraints in a fixed order until the limit is met or
	// nothing is left to relax.
	steps := []struct {
		name        string
		useBoosts   bool
		useTime     bool
		widenLevels bool
	}{
		{"", true, true, false},
		{RelaxContextBoosts, false, true, false},
		{RelaxTimeFilter, false, false, false},
		{RelaxLevelBand, false, false, true},
	}

	var relaxed []string
	for _, step := range steps {
		if step.name != "" {
			relaxed = append(relaxed, step.name)
			metrics.RecommendationRelaxations.WithLabelValues(step.name).Inc()
		}

		results := e.rank(profile, reqCtx, scored, limit, step.useBoosts, step.useTime, step.widenLevels)
		if len(results) >= limit || step.name == RelaxLevelBand {
			set.Results = results
			break
		}
	}
	set.RelaxedConstraints = relaxed

	return set, nil
}

// scoredItem pairs a candidate with its base score and explanation.
type scoredItem struct {
	item    model.ContentItem
	base    float64
	factors []model.ScoreFactor
}

func (e *Engine) scoreAll(profile *model.UserProfile, candidates []model.ContentItem) []scoredItem {
	scored := make([]scoredItem, 0, len(candidates))
	for _, item := range candidates {
		base, factors := e.scorer.Score(profile, &item)
		scored = append(scored, scoredItem{item: item, base: base, factors: factors})
	}
	return scored
}

// rank applies gates, boosts and diversity for one relaxation step.
func (e *Engine) rank(profile *model.UserProfile, reqCtx *model.RequestContext, scored []scoredItem, limit int, useBoosts, useTime, widenLevels bool) []model.RecommendationResult {
	pool := make([]scoredItem, 0, len(scored))
	for _, s := range scored {
		if useTime && !e.fitsTime(reqCtx, &s.item) {
			continue
		}
		if !e.fitsLevel(profile, &s.item, widenLevels) {
			continue
		}

		if useBoosts {
			boost := e.contextBoost(profile, reqCtx, &s.item)
			if boost != 1 {
				s.base = model.ClampUnit(s.base * boost)
				s.factors = append(s.factors, model.ScoreFactor{
					Name:  "context_boost",
					Value: boost,
				})
			}
		}
		pool = append(pool, s)
	}

	return e.diversify(profile, pool, limit)
}

// fitsTime gates by estimated reading time against the user's budget,
// with the configured tolerance. No budget means no gate.
func (e *Engine) fitsTime(reqCtx *model.RequestContext, item *model.ContentItem) bool {
	if reqCtx == nil || reqCtx.AvailableTime <= 0 || item.EstimatedReadingTime <= 0 {
		return true
	}
	budget := time.Duration(float64(reqCtx.AvailableTime) * (1 + e.cfg.TimeTolerance))
	return item.EstimatedReadingTime <= budget
}

// fitsLevel gates out content more than one band above the user's
// level; the last relaxation step widens the band.
func (e *Engine) fitsLevel(profile *model.UserProfile, item *model.ContentItem, widened bool) bool {
	if item.ReadingLevelScore <= 0 {
		return true
	}
	ceiling := profile.ReadingLevelFor(item.Language).Level + 1
	if widened {
		ceiling += e.cfg.LevelBandWiden
	}
	return item.ReadingLevelScore <= ceiling
}

// contextBoost multiplies per-context topic affinities into a bounded
// boost factor.
func (e *Engine) contextBoost(profile *model.UserProfile, reqCtx *model.RequestContext, item *model.ContentItem) float64 {
	tags := contextTags(reqCtx)
	if len(tags) == 0 {
		return 1
	}

	dominant := item.DominantTopic()
	if dominant == "" {
		return 1
	}

	boost := 1.0
	for _, tag := range tags {
		if w, ok := profile.ContextualPreferences[tag+"|"+dominant]; ok {
			boost *= 1 + 0.2*w
		}
	}

	if boost < e.cfg.BoostFloor {
		return e.cfg.BoostFloor
	}
	if boost > e.cfg.BoostCeil {
		return e.cfg.BoostCeil
	}
	return boost
}

// diversify greedily picks the best remaining item, then decays the
// scores of items sharing its dominant topic so one strong interest
// cannot monopolize the list.
func (e *Engine) diversify(profile *model.UserProfile, pool []scoredItem, limit int) []model.RecommendationResult {
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].base != pool[j].base {
			return pool[i].base > pool[j].base
		}
		return pool[i].item.ID < pool[j].item.ID
	})

	results := make([]model.RecommendationResult, 0, limit)
	remaining := append([]scoredItem(nil), pool...)

	for len(results) < limit && len(remaining) > 0 {
		// remaining is kept sorted; the head is the next pick.
		pick := remaining[0]
		remaining = remaining[1:]

		results = append(results, model.RecommendationResult{
			ContentID:     pick.item.ID,
			Score:         pick.base,
			Explanation:   explainFactors(pick.factors),
			LevelMismatch: scoring.LevelMismatch(profile, &pick.item),
		})

		topic := pick.item.DominantTopic()
		if topic == "" || e.cfg.DiversityDecay >= 1 {
			continue
		}
		for i := range remaining {
			if remaining[i].item.DominantTopic() == topic {
				remaining[i].base *= e.cfg.DiversityDecay
			}
		}
		sort.SliceStable(remaining, func(i, j int) bool {
			if remaining[i].base != remaining[j].base {
				return remaining[i].base > remaining[j].base
			}
			return remaining[i].item.ID < remaining[j].item.ID
		})
	}

	return results
}

// exploratorySet serves cold-start users: popular content spread
// across topics, explicitly flagged as exploratory.
func (e *Engine) exploratorySet(ctx context.Context, req *model.RecommendationRequest, limit int) (*model.RecommendationSet, error) {
	popular, err := e.catalog.Popular(ctx, req.Language, e.cfg.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("load popular: %w", err)
	}

	results := make([]model.RecommendationResult, 0, limit)
	seenTopics := make(map[string]bool)

	// Two passes: first one item per topic, then fill with the rest.
	for _, item := range popular {
		if len(results) >= limit {
			break
		}
		topic := item.DominantTopic()
		if topic != "" && seenTopics[topic] {
			continue
		}
		seenTopics[topic] = true
		results = append(results, exploratoryResult(&item))
	}
	if len(results) < limit {
		picked := make(map[string]bool, len(results))
		for _, r := range results {
			picked[r.ContentID] = true
		}
		for _, item := range popular {
			if len(results) >= limit {
				break
			}
			if picked[item.ID] {
				continue
			}
			results = append(results, exploratoryResult(&item))
		}
	}

	return &model.RecommendationSet{
		Results:     results,
		Exploratory: true,
	}, nil
}

func exploratoryResult(item *model.ContentItem) model.RecommendationResult {
	return model.RecommendationResult{
		ContentID: item.ID,
		Score:     model.ClampUnit(item.PopularityScore),
		Explanation: []model.ScoreFactor{{
			Name:   "popularity",
			Value:  item.PopularityScore,
			Detail: "popular with other readers while we learn your tastes",
		}},
	}
}
