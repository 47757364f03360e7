// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package model defines the shared data model for the personalization core:
// user profiles, content items, feedback events, and recommendation results.
// It has no dependencies on other internal packages so every component can
// consume it without import cycles.
package model

import (
	"math"
	"time"
)

// Trend describes the direction a topic preference is moving across
// recent preference snapshots.
type Trend int

const (
	// TrendStable indicates no significant weight movement.
	TrendStable Trend = iota
	// TrendIncreasing indicates the weight is rising across snapshots.
	TrendIncreasing
	// TrendDecreasing indicates the weight is falling across snapshots.
	TrendDecreasing
)

// String returns a human-readable trend name.
func (t Trend) String() string {
	switch t {
	case TrendIncreasing:
		return "increasing"
	case TrendDecreasing:
		return "decreasing"
	case TrendStable:
		return "stable"
	default:
		return "unknown"
	}
}

// TopicPreference tracks a user's learned affinity for a single topic.
type TopicPreference struct {
	// Weight is the preference strength in [-1, 1].
	// Negative weights indicate learned dislike.
	Weight float64 `json:"weight"`

	// Confidence is the reliability of the weight in [0, 1], based on the
	// consistency and recency of supporting signals.
	Confidence float64 `json:"confidence"`

	// LastUpdated is when a signal last touched this topic.
	LastUpdated time.Time `json:"last_updated"`

	// Trend is derived from the slope across recent snapshots.
	Trend Trend `json:"trend"`

	// Overridden marks a manual preference set via the override API.
	// Automatic updates must not silently revert overridden topics.
	Overridden bool `json:"overridden,omitempty"`
}

// ReadingLevel tracks a user's assessed reading level for one language.
// Levels for different languages are independent values; updating one
// language never mutates another.
type ReadingLevel struct {
	// Level is the ordinal reading level (LevelBeginner..LevelNative).
	Level float64 `json:"level"`

	// Confidence is the reliability of the assessment in [0, 1].
	Confidence float64 `json:"confidence"`

	// LastUpdated is when the assessment last changed.
	LastUpdated time.Time `json:"last_updated"`
}

// Reading level bands on the ordinal scale used by both user profiles
// and content scores. The scale is continuous so content analyzers can
// report fractional difficulty.
const (
	LevelBeginner     = 1.0
	LevelElementary   = 2.0
	LevelIntermediate = 3.0
	LevelAdvanced     = 4.0
	LevelNative       = 5.0
)

// UserProfile is the durable per-user preference state.
// It is mutated only by the feedback processor (automatic) or by
// explicit preference overrides (manual).
type UserProfile struct {
	// UserID is the external user identifier.
	UserID string `json:"user_id"`

	// TopicPreferences maps topic ID to the learned preference.
	TopicPreferences map[string]TopicPreference `json:"topic_preferences"`

	// ReadingLevels maps language code (BCP 47 primary subtag, e.g. "en",
	// "ja") to the assessed reading level for that language.
	ReadingLevels map[string]ReadingLevel `json:"reading_levels"`

	// ContextualPreferences maps context-factor keys
	// ("device:mobile", "time:evening", "mood:relaxed") to soft weights.
	ContextualPreferences map[string]float64 `json:"contextual_preferences"`

	// EvolutionHistory is the bounded, ordered snapshot history,
	// oldest first. Maintained by the evolution tracker.
	EvolutionHistory []PreferenceSnapshot `json:"evolution_history,omitempty"`

	// DivergenceBand is the per-user discovery band, adjusted by
	// discovery responses (accepts widen it, rejections narrow it).
	DivergenceBand DivergenceBand `json:"divergence_band"`

	// EventCount is the total number of feedback events folded into
	// this profile. Used for cold-start detection.
	EventCount int64 `json:"event_count"`

	// CreatedAt is when the profile was first materialized.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the time of the last fold or override.
	UpdatedAt time.Time `json:"updated_at"`
}

// DivergenceBand bounds the acceptable divergence score for discovery
// recommendations. Zero values mean "use configured defaults".
type DivergenceBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewUserProfile returns a profile with neutral defaults and low
// confidence, the cold-start state for a first interaction.
func NewUserProfile(userID string) *UserProfile {
	now := time.Now().UTC()
	return &UserProfile{
		UserID:                userID,
		TopicPreferences:      make(map[string]TopicPreference),
		ReadingLevels:         make(map[string]ReadingLevel),
		ContextualPreferences: make(map[string]float64),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// Clone returns a deep copy of the profile. Readers operate on clones
// so concurrent folds never mutate a profile being scored.
func (p *UserProfile) Clone() *UserProfile {
	c := &UserProfile{
		UserID:         p.UserID,
		DivergenceBand: p.DivergenceBand,
		EventCount:     p.EventCount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}

	c.TopicPreferences = make(map[string]TopicPreference, len(p.TopicPreferences))
	for k, v := range p.TopicPreferences {
		c.TopicPreferences[k] = v
	}

	c.ReadingLevels = make(map[string]ReadingLevel, len(p.ReadingLevels))
	for k, v := range p.ReadingLevels {
		c.ReadingLevels[k] = v
	}

	c.ContextualPreferences = make(map[string]float64, len(p.ContextualPreferences))
	for k, v := range p.ContextualPreferences {
		c.ContextualPreferences[k] = v
	}

	if len(p.EvolutionHistory) > 0 {
		c.EvolutionHistory = make([]PreferenceSnapshot, len(p.EvolutionHistory))
		copy(c.EvolutionHistory, p.EvolutionHistory)
	}

	return c
}

// ReadingLevelFor returns the assessed level for a language, or a
// neutral intermediate assessment with zero confidence if the language
// has never been observed.
func (p *UserProfile) ReadingLevelFor(language string) ReadingLevel {
	if rl, ok := p.ReadingLevels[language]; ok {
		return rl
	}
	return ReadingLevel{Level: LevelIntermediate, Confidence: 0}
}

// PreferenceSnapshot is an immutable copy of the preference vector at a
// point in time, written by the evolution tracker.
type PreferenceSnapshot struct {
	// ID is the snapshot identifier (UUID).
	ID string `json:"id"`

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`

	// Weights is a copy of the topic weights at snapshot time.
	Weights map[string]float64 `json:"weights"`

	// AggregateConfidence is the mean topic confidence at snapshot time.
	AggregateConfidence float64 `json:"aggregate_confidence"`

	// TriggerReason records why the snapshot was taken
	// ("initial", "scheduled", "event_count", "drift").
	TriggerReason string `json:"trigger_reason"`

	// EventCount is the profile's event count at snapshot time,
	// anchoring the event-threshold trigger.
	EventCount int64 `json:"event_count"`
}

// ClampWeight bounds a topic weight to [-1, 1].
func ClampWeight(w float64) float64 {
	return math.Max(-1, math.Min(1, w))
}

// ClampConfidence bounds a confidence value to [0, 1].
func ClampConfidence(c float64) float64 {
	return math.Max(0, math.Min(1, c))
}

// ClampUnit bounds a score to [0, 1].
func ClampUnit(s float64) float64 {
	return math.Max(0, math.Min(1, s))
}
