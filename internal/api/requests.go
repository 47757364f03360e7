// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quillfeed/quillfeed/internal/model"
)

// FeedbackRequest is the wire shape of a feedback submission. Signal
// types and discovery responses arrive as strings and are mapped onto
// the internal enums before folding.
type FeedbackRequest struct {
	// EventID is the caller's idempotency key; generated when absent.
	EventID string `json:"event_id,omitempty"`

	UserID    string `json:"user_id" validate:"required"`
	ContentID string `json:"content_id" validate:"required"`

	// Type is one of "rating", "like", "dislike", "implicit",
	// "discovery_response".
	Type string `json:"type" validate:"required,oneof=rating like dislike implicit discovery_response"`

	// Rating is required for type "rating".
	Rating float64 `json:"rating,omitempty" validate:"gte=-1,lte=1"`

	// Implicit is required for type "implicit".
	Implicit *ImplicitPayload `json:"implicit,omitempty"`

	// Discovery is required for type "discovery_response": one of
	// "interested", "not_interested", "saved".
	Discovery string `json:"discovery,omitempty" validate:"omitempty,oneof=interested not_interested saved"`

	FreeText  string    `json:"free_text,omitempty"`
	Context   []string  `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ImplicitPayload carries behavior measurements for implicit feedback.
type ImplicitPayload struct {
	CompletionRate    float64 `json:"completion_rate" validate:"gte=0,lte=1"`
	ReadingSpeedRatio float64 `json:"reading_speed_ratio,omitempty" validate:"gte=0"`
	PauseEvents       int     `json:"pause_events,omitempty" validate:"gte=0"`
	ReturnVisit       bool    `json:"return_visit,omitempty"`
}

var feedbackTypes = map[string]model.FeedbackType{
	"rating":             model.FeedbackExplicitRating,
	"like":               model.FeedbackLike,
	"dislike":            model.FeedbackDislike,
	"implicit":           model.FeedbackImplicit,
	"discovery_response": model.FeedbackDiscoveryResponse,
}

var discoveryResponses = map[string]model.DiscoveryResponse{
	"interested":     model.DiscoveryResponseInterested,
	"not_interested": model.DiscoveryResponseNotInterested,
	"saved":          model.DiscoveryResponseSaved,
}

// ToEvent maps the request onto a model.FeedbackEvent. Cross-field
// requirements that struct tags cannot express are checked here.
func (req *FeedbackRequest) ToEvent() (*model.FeedbackEvent, error) {
	ftype, ok := feedbackTypes[req.Type]
	if !ok {
		return nil, fmt.Errorf("unknown feedback type %q", req.Type)
	}

	ev := &model.FeedbackEvent{
		EventID:   req.EventID,
		UserID:    req.UserID,
		ContentID: req.ContentID,
		Type:      ftype,
		Rating:    req.Rating,
		FreeText:  req.FreeText,
		Context:   req.Context,
		Timestamp: req.Timestamp,
	}
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	switch ftype {
	case model.FeedbackImplicit:
		if req.Implicit == nil {
			return nil, fmt.Errorf("implicit feedback requires the implicit payload")
		}
		ev.Implicit = &model.ImplicitSignals{
			CompletionRate:    req.Implicit.CompletionRate,
			ReadingSpeedRatio: req.Implicit.ReadingSpeedRatio,
			PauseEvents:       req.Implicit.PauseEvents,
			ReturnVisit:       req.Implicit.ReturnVisit,
		}
	case model.FeedbackDiscoveryResponse:
		resp, ok := discoveryResponses[req.Discovery]
		if !ok {
			return nil, fmt.Errorf("discovery_response feedback requires a discovery reaction")
		}
		ev.Discovery = resp
	}

	return ev, nil
}

// OverrideRequest pins a topic weight, pausing automatic learning for it.
type OverrideRequest struct {
	Weight float64 `json:"weight" validate:"gte=-1,lte=1"`
}
