// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package model

import "time"

// FeedbackType classifies a feedback event.
type FeedbackType int

const (
	// FeedbackExplicitRating is a user-supplied rating in [-1, 1].
	FeedbackExplicitRating FeedbackType = iota
	// FeedbackLike is a categorical positive signal.
	FeedbackLike
	// FeedbackDislike is a categorical negative signal.
	FeedbackDislike
	// FeedbackImplicit is derived from reading behavior
	// (completion rate, reading speed, pauses, return visits).
	FeedbackImplicit
	// FeedbackDiscoveryResponse records the user's reaction to a
	// discovery recommendation and adjusts the divergence band.
	FeedbackDiscoveryResponse
)

// String returns a human-readable feedback type name.
func (t FeedbackType) String() string {
	switch t {
	case FeedbackExplicitRating:
		return "explicit_rating"
	case FeedbackLike:
		return "like"
	case FeedbackDislike:
		return "dislike"
	case FeedbackImplicit:
		return "implicit"
	case FeedbackDiscoveryResponse:
		return "discovery_response"
	default:
		return "unknown"
	}
}

// Explicit reports whether the type carries an explicit user judgment.
// Explicit signals get a higher signal weight than implicit ones.
func (t FeedbackType) Explicit() bool {
	switch t {
	case FeedbackExplicitRating, FeedbackLike, FeedbackDislike:
		return true
	default:
		return false
	}
}

// ImplicitSignals holds behavior-derived measurements attached to an
// implicit feedback event.
type ImplicitSignals struct {
	// CompletionRate is the fraction of the content read, in [0, 1].
	CompletionRate float64 `json:"completion_rate"`

	// ReadingSpeedRatio is the observed speed relative to the user's
	// own rolling baseline (1.0 = at baseline).
	ReadingSpeedRatio float64 `json:"reading_speed_ratio,omitempty"`

	// PauseEvents is the number of reading pauses.
	PauseEvents int `json:"pause_events,omitempty"`

	// ReturnVisit marks content the user came back to.
	ReturnVisit bool `json:"return_visit,omitempty"`
}

// DiscoveryResponse is the user's reaction to a discovery recommendation.
type DiscoveryResponse int

const (
	// DiscoveryResponseNone means no reaction was recorded.
	DiscoveryResponseNone DiscoveryResponse = iota
	// DiscoveryResponseInterested means the user engaged.
	DiscoveryResponseInterested
	// DiscoveryResponseNotInterested means the user rejected it.
	DiscoveryResponseNotInterested
	// DiscoveryResponseSaved means the user saved it for later.
	DiscoveryResponseSaved
)

// String returns a human-readable response name.
func (r DiscoveryResponse) String() string {
	switch r {
	case DiscoveryResponseInterested:
		return "interested"
	case DiscoveryResponseNotInterested:
		return "not_interested"
	case DiscoveryResponseSaved:
		return "saved"
	case DiscoveryResponseNone:
		return "none"
	default:
		return "unknown"
	}
}

// FeedbackEvent is a single raw feedback observation. Events are
// appended to the durable log before being folded into the profile;
// re-submission of the same EventID is a no-op.
type FeedbackEvent struct {
	// EventID is the caller-supplied idempotency key.
	EventID string `json:"event_id"`

	// UserID is the user the event belongs to.
	UserID string `json:"user_id"`

	// ContentID is the content the feedback refers to.
	ContentID string `json:"content_id"`

	// Type classifies the event.
	Type FeedbackType `json:"type"`

	// Rating is the explicit rating in [-1, 1].
	// Only meaningful for FeedbackExplicitRating.
	Rating float64 `json:"rating,omitempty"`

	// Implicit carries behavior measurements for FeedbackImplicit.
	Implicit *ImplicitSignals `json:"implicit,omitempty"`

	// Discovery carries the reaction for FeedbackDiscoveryResponse.
	Discovery DiscoveryResponse `json:"discovery,omitempty"`

	// FreeText is optional context supplied with explicit feedback.
	// Stored verbatim; interpretation belongs to the NLU layer.
	FreeText string `json:"free_text,omitempty"`

	// Context captures the interaction context for contextual
	// preference learning ("device:mobile", "time:evening").
	Context []string `json:"context,omitempty"`

	// Timestamp is when the interaction occurred.
	Timestamp time.Time `json:"timestamp"`
}
