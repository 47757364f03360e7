// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package service composes the personalization subsystems behind one
// facade the HTTP layer calls. It owns cross-cutting flows: enriching
// feedback with content analysis before the fold, invalidating cached
// recommendations after feedback, and assembling the transparency view.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillfeed/quillfeed/internal/analyzer"
	"github.com/quillfeed/quillfeed/internal/content"
	"github.com/quillfeed/quillfeed/internal/discovery"
	"github.com/quillfeed/quillfeed/internal/evolution"
	"github.com/quillfeed/quillfeed/internal/feedback"
	"github.com/quillfeed/quillfeed/internal/model"
	"github.com/quillfeed/quillfeed/internal/recommend"
	"github.com/quillfeed/quillfeed/internal/store"
)

// ErrUnknownContent is returned when feedback references content the
// catalog has never seen.
var ErrUnknownContent = errors.New("service: unknown content")

// Service is the personalization facade.
type Service struct {
	store     store.ProfileStore
	catalog   *content.MemoryCatalog
	resilient *content.ResilientCatalog
	analyzer  *analyzer.Service
	pipeline  *feedback.Pipeline
	engine    *recommend.Engine
	discovery *discovery.Engine
	evolution *evolution.Tracker
	logger    zerolog.Logger
}

// New creates a Service from its composed parts.
func New(
	st store.ProfileStore,
	catalog *content.MemoryCatalog,
	resilient *content.ResilientCatalog,
	an *analyzer.Service,
	pipeline *feedback.Pipeline,
	engine *recommend.Engine,
	disc *discovery.Engine,
	evo *evolution.Tracker,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:     st,
		catalog:   catalog,
		resilient: resilient,
		analyzer:  an,
		pipeline:  pipeline,
		engine:    engine,
		discovery: disc,
		evolution: evo,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// IngestRequest carries new or updated content for analysis.
type IngestRequest struct {
	ContentID            string        `json:"content_id" validate:"required"`
	Language             string        `json:"language" validate:"required,bcp47_language_tag"`
	Text                 string        `json:"text" validate:"required"`
	Tags                 []string      `json:"tags,omitempty"`
	EstimatedReadingTime time.Duration `json:"estimated_reading_time,omitempty"`
	PopularityScore      float64       `json:"popularity_score,omitempty" validate:"gte=0,lte=1"`
}

// IngestContent analyzes the text and adds the item to the catalog.
// Unsupported languages are rejected, not guessed at.
func (s *Service) IngestContent(ctx context.Context, req *IngestRequest) (*model.ContentItem, error) {
	analysis, err := s.analyzer.Analyze(ctx, req.ContentID, req.Language, req.Text)
	if err != nil {
		return nil, fmt.Errorf("analyze content: %w", err)
	}

	item := model.ContentItem{
		ID:                   req.ContentID,
		Language:             req.Language,
		TopicScores:          analysis.TopicScores,
		ReadingLevelScore:    analysis.ReadingLevelScore,
		Embedding:            analysis.Embedding,
		EstimatedReadingTime: req.EstimatedReadingTime,
		Tags:                 req.Tags,
		PopularityScore:      req.PopularityScore,
	}
	s.catalog.Upsert(item)

	s.logger.Info().
		Str("content_id", item.ID).
		Str("language", item.Language).
		Bool("low_confidence", analysis.LowConfidence).
		Msg("content ingested")
	return &item, nil
}

// SubmitFeedback enriches the event with the referenced content and
// schedules its fold. It returns false when the event was a duplicate.
func (s *Service) SubmitFeedback(ctx context.Context, ev *model.FeedbackEvent) (bool, error) {
	item, err := s.resilient.Get(ctx, ev.ContentID)
	if errors.Is(err, content.ErrContentNotFound) {
		return false, fmt.Errorf("%w: %s", ErrUnknownContent, ev.ContentID)
	}
	if err != nil {
		return false, fmt.Errorf("resolve content: %w", err)
	}

	applied, err := s.pipeline.Submit(ctx, &feedback.EnrichedEvent{Event: *ev, Content: *item})
	if err != nil {
		return false, err
	}
	if applied {
		// Fresh feedback should show in the next recommendation.
		s.engine.InvalidateUser(ev.UserID)
	}
	return applied, nil
}

// Recommendations returns the contextual recommendation set.
func (s *Service) Recommendations(ctx context.Context, req *model.RecommendationRequest) (*model.RecommendationSet, error) {
	return s.engine.Recommend(ctx, req)
}

// Discoveries returns divergent-but-accessible recommendations.
func (s *Service) Discoveries(ctx context.Context, userID, language string, limit int) ([]model.DiscoveryRecommendation, error) {
	return s.discovery.Discover(ctx, userID, language, limit)
}

// Transparency assembles the user-facing view of learned preferences.
func (s *Service) Transparency(ctx context.Context, userID string) (*model.PreferenceTransparency, error) {
	profile, err := s.store.Read(ctx, userID)
	if errors.Is(err, store.ErrProfileNotFound) {
		profile = model.NewUserProfile(userID)
	} else if err != nil {
		return nil, err
	}

	view := &model.PreferenceTransparency{
		UserID:                userID,
		Weights:               make(map[string]float64, len(profile.TopicPreferences)),
		Confidences:           make(map[string]float64, len(profile.TopicPreferences)),
		DerivationExplanation: make(map[string]string, len(profile.TopicPreferences)),
	}

	for topic, pref := range profile.TopicPreferences {
		view.Weights[topic] = pref.Weight
		view.Confidences[topic] = pref.Confidence
		if pref.Overridden {
			view.Overridden = append(view.Overridden, topic)
			view.DerivationExplanation[topic] = "set by you; automatic learning is paused for this topic"
			continue
		}
		view.DerivationExplanation[topic] = describeDerivation(pref)
	}

	return view, nil
}

func describeDerivation(pref model.TopicPreference) string {
	direction := "neutral on"
	switch {
	case pref.Weight > 0.3:
		direction = "interested in"
	case pref.Weight < -0.3:
		direction = "avoiding"
	}

	trend := ""
	switch pref.Trend {
	case model.TrendIncreasing:
		trend = ", and growing"
	case model.TrendDecreasing:
		trend = ", and fading"
	}

	confidence := "tentatively"
	if pref.Confidence >= 0.6 {
		confidence = "confidently"
	}

	return fmt.Sprintf("learned from your reading and ratings: %s %s this topic%s (last updated %s)",
		confidence, direction, trend, pref.LastUpdated.Format("2006-01-02"))
}

// Override pins a topic weight. The fold skips overridden topics until
// the override is cleared.
func (s *Service) Override(ctx context.Context, userID, topic string, weight float64) error {
	if topic == "" {
		return errors.New("service: empty topic")
	}

	_, err := s.store.AtomicUpdate(ctx, userID, func(profile *model.UserProfile) error {
		pref := profile.TopicPreferences[topic]
		pref.Weight = model.ClampWeight(weight)
		pref.Confidence = 1
		pref.Overridden = true
		pref.LastUpdated = time.Now().UTC()
		profile.TopicPreferences[topic] = pref
		profile.UpdatedAt = pref.LastUpdated
		return nil
	})
	if err != nil {
		return err
	}

	s.engine.InvalidateUser(userID)
	return nil
}

// ClearOverride resumes automatic learning for a topic. The pinned
// weight remains as the starting point.
func (s *Service) ClearOverride(ctx context.Context, userID, topic string) error {
	_, err := s.store.AtomicUpdate(ctx, userID, func(profile *model.UserProfile) error {
		pref, ok := profile.TopicPreferences[topic]
		if !ok || !pref.Overridden {
			return nil
		}
		pref.Overridden = false
		pref.LastUpdated = time.Now().UTC()
		profile.TopicPreferences[topic] = pref
		return nil
	})
	return err
}

// History returns the preference evolution snapshots plus the drift
// since the latest one.
func (s *Service) History(ctx context.Context, userID string) ([]model.PreferenceSnapshot, *evolution.DriftReport, error) {
	profile, err := s.store.Read(ctx, userID)
	if errors.Is(err, store.ErrProfileNotFound) {
		return nil, &evolution.DriftReport{}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	drift, err := s.evolution.Drift(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return profile.EvolutionHistory, drift, nil
}

// Stats exposes store counters for the health surface.
func (s *Service) Stats() store.Stats {
	return s.store.Stats()
}
