// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package model

import "time"

// RequestContext carries the contextual factors for a recommendation
// request. All fields are optional; absent fields may be inferred from
// the user's interaction history when enough samples exist.
type RequestContext struct {
	// TimeOfDay is a coarse bucket: "morning", "afternoon", "evening",
	// "night".
	TimeOfDay string `json:"time_of_day,omitempty"`

	// DeviceType is the reading device: "mobile", "tablet", "desktop",
	// "ereader".
	DeviceType string `json:"device_type,omitempty"`

	// Location is a coarse location label, if the caller supplies one.
	Location string `json:"location,omitempty"`

	// AvailableTime is the user's reading time budget.
	AvailableTime time.Duration `json:"available_time,omitempty"`

	// Mood is a free-form mood label ("relaxed", "focused", "curious").
	Mood string `json:"mood,omitempty"`
}

// Empty reports whether no contextual factor was supplied.
func (c *RequestContext) Empty() bool {
	if c == nil {
		return true
	}
	return c.TimeOfDay == "" && c.DeviceType == "" && c.Location == "" &&
		c.AvailableTime == 0 && c.Mood == ""
}

// RecommendationRequest asks for ranked recommendations for one user.
type RecommendationRequest struct {
	// UserID is the user to recommend for.
	UserID string `json:"user_id"`

	// Context is the optional request context.
	Context *RequestContext `json:"context,omitempty"`

	// Limit is the maximum number of results to return.
	Limit int `json:"limit,omitempty"`

	// Language restricts candidates to one content language.
	Language string `json:"language,omitempty"`

	// SessionID groups requests; a new request for the same session
	// supersedes an in-flight one (last-request-wins).
	SessionID string `json:"session_id,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// ScoreFactor is one named contribution to a recommendation score,
// used to build human-readable explanations.
type ScoreFactor struct {
	// Name identifies the factor ("topic_match", "reading_level_fit",
	// "context_boost", "diversity_penalty", "popularity").
	Name string `json:"name"`

	// Value is the factor's contribution.
	Value float64 `json:"value"`

	// Detail is an optional human-readable elaboration.
	Detail string `json:"detail,omitempty"`
}

// RecommendationResult is one ranked recommendation with its
// explanation.
type RecommendationResult struct {
	// ContentID is the recommended content.
	ContentID string `json:"content_id"`

	// Score is the final ranking score in [0, 1].
	Score float64 `json:"score"`

	// Explanation lists the dominant factors behind the score.
	Explanation []ScoreFactor `json:"explanation,omitempty"`

	// LevelMismatch flags content whose reading level exceeds the
	// user's assessed level by more than one band.
	LevelMismatch bool `json:"level_mismatch,omitempty"`
}

// RecommendationSet is the full response for one request, including
// degradation flags the caller must be able to see.
type RecommendationSet struct {
	// Results is the ordered recommendation list.
	Results []RecommendationResult `json:"results"`

	// Uncontextualized marks responses ranked with neutral context
	// because none was supplied and history was too thin to infer one.
	Uncontextualized bool `json:"uncontextualized,omitempty"`

	// Exploratory marks cold-start responses built from popular and
	// diverse content rather than personalization.
	Exploratory bool `json:"exploratory,omitempty"`

	// Incomplete marks responses built from a cached candidate set
	// after a content store timeout.
	Incomplete bool `json:"incomplete,omitempty"`

	// RelaxedConstraints lists constraints dropped to produce results,
	// in relaxation order. Empty when no relaxation was needed.
	RelaxedConstraints []string `json:"relaxed_constraints,omitempty"`

	// RequestID echoes the request identifier for tracing.
	RequestID string `json:"request_id,omitempty"`

	// GeneratedAt is when the set was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// DiscoveryRecommendation is one deliberately divergent recommendation.
type DiscoveryRecommendation struct {
	// ContentID is the recommended content.
	ContentID string `json:"content_id"`

	// DivergenceScore measures topical dissimilarity from the user's
	// established preferences, within the configured band.
	DivergenceScore float64 `json:"divergence_score"`

	// BridgingTopics connect the candidate to existing preferences.
	BridgingTopics []string `json:"bridging_topics,omitempty"`

	// Reason is the human-readable explanation built from the
	// bridging topics.
	Reason string `json:"reason,omitempty"`

	// Exploratory marks recommendations served before the user has any
	// explored topics, where no divergence band applies.
	Exploratory bool `json:"exploratory,omitempty"`

	// UserResponse is the recorded reaction, if any.
	UserResponse DiscoveryResponse `json:"user_response"`
}

// PreferenceTransparency is the user-facing view of learned state.
type PreferenceTransparency struct {
	UserID string `json:"user_id"`

	// Weights maps topic to current weight.
	Weights map[string]float64 `json:"weights"`

	// Confidences maps topic to current confidence.
	Confidences map[string]float64 `json:"confidences"`

	// Overridden lists topics pinned by manual override.
	Overridden []string `json:"overridden,omitempty"`

	// DerivationExplanation describes, per topic, how the weight was
	// derived (signal counts, trend, last update).
	DerivationExplanation map[string]string `json:"derivation_explanation,omitempty"`
}
