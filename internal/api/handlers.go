// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/quillfeed/quillfeed/internal/analyzer"
	"github.com/quillfeed/quillfeed/internal/feedback"
	"github.com/quillfeed/quillfeed/internal/metrics"
	"github.com/quillfeed/quillfeed/internal/model"
	"github.com/quillfeed/quillfeed/internal/recommend"
	"github.com/quillfeed/quillfeed/internal/service"
	"github.com/quillfeed/quillfeed/internal/validation"
)

// Handler holds the HTTP handlers over the service layer.
type Handler struct {
	svc      *service.Service
	analyzer *analyzer.Service
	logger   zerolog.Logger
}

// NewHandler creates the handler set.
func NewHandler(svc *service.Service, an *analyzer.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		analyzer: an,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation, writing the error response itself on failure.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		var rve *validation.RequestValidationError
		if errors.As(err, &rve) {
			apiErr := rve.ToAPIError()
			rw.ValidationError(apiErr.Message, apiErr.Details)
		} else {
			rw.BadRequest(err.Error())
		}
		return false
	}
	return true
}

// IngestContent analyzes and registers a content item.
//
// POST /api/v1/content
func (h *Handler) IngestContent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req service.IngestRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	item, err := h.svc.IngestContent(r.Context(), &req)
	if errors.Is(err, analyzer.ErrUnsupportedLanguage) {
		rw.Unprocessable("unsupported content language: " + req.Language)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("content_id", req.ContentID).Msg("content ingest failed")
		rw.InternalError("content analysis failed")
		return
	}

	rw.Created(item)
}

// SubmitFeedback accepts a feedback event for asynchronous folding.
//
// POST /api/v1/feedback
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req FeedbackRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	ev, err := req.ToEvent()
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	applied, err := h.svc.SubmitFeedback(r.Context(), ev)
	switch {
	case errors.Is(err, service.ErrUnknownContent):
		rw.NotFound("unknown content: " + ev.ContentID)
		return
	case errors.Is(err, feedback.ErrPipelineClosed):
		rw.ServiceUnavailable("feedback pipeline is shutting down")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("event_id", ev.EventID).Msg("feedback submit failed")
		rw.StoreError(err)
		return
	}

	metrics.FeedbackEventsTotal.WithLabelValues(req.Type).Inc()
	if !applied {
		metrics.FeedbackDuplicatesTotal.Inc()
	}

	rw.Accepted(map[string]interface{}{
		"event_id": ev.EventID,
		"applied":  applied,
	})
}

// Recommendations serves the contextual recommendation set.
//
// GET /api/v1/users/{userID}/recommendations
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	req := &model.RecommendationRequest{
		UserID:    chi.URLParam(r, "userID"),
		Language:  q.Get("language"),
		SessionID: q.Get("session_id"),
		Limit:     queryInt(q.Get("limit"), 0),
	}

	ctx := &model.RequestContext{
		TimeOfDay:  q.Get("time_of_day"),
		DeviceType: q.Get("device_type"),
		Location:   q.Get("location"),
		Mood:       q.Get("mood"),
	}
	if minutes := queryInt(q.Get("available_minutes"), 0); minutes > 0 {
		ctx.AvailableTime = time.Duration(minutes) * time.Minute
	}
	if !ctx.Empty() {
		req.Context = ctx
	}

	set, err := h.svc.Recommendations(r.Context(), req)
	if errors.Is(err, recommend.ErrSuperseded) {
		metrics.RecommendationSuperseded.Inc()
		rw.Conflict("superseded by a newer request in this session")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("recommendation failed")
		rw.StoreError(err)
		return
	}

	mode := "personalized"
	if set.Exploratory {
		mode = "exploratory"
	}
	metrics.RecommendationRequests.WithLabelValues(mode).Inc()
	if set.Incomplete {
		metrics.RecommendationIncomplete.Inc()
	}

	rw.Success(set)
}

// Discoveries serves boundary-pushing recommendations.
//
// GET /api/v1/users/{userID}/discoveries
func (h *Handler) Discoveries(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	userID := chi.URLParam(r, "userID")
	recs, err := h.svc.Discoveries(r.Context(), userID, q.Get("language"), queryInt(q.Get("limit"), 0))
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("discovery failed")
		rw.StoreError(err)
		return
	}

	metrics.RecommendationRequests.WithLabelValues("discovery").Inc()
	rw.Success(recs)
}

// Transparency serves the user-facing preference view.
//
// GET /api/v1/users/{userID}/preferences
func (h *Handler) Transparency(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	view, err := h.svc.Transparency(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		rw.StoreError(err)
		return
	}
	rw.Success(view)
}

// Override pins a topic weight.
//
// PUT /api/v1/users/{userID}/preferences/{topic}
func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req OverrideRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	userID := chi.URLParam(r, "userID")
	topic := chi.URLParam(r, "topic")
	if err := h.svc.Override(r.Context(), userID, topic, req.Weight); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Str("topic", topic).Msg("override failed")
		rw.StoreError(err)
		return
	}

	rw.Success(map[string]interface{}{
		"topic":  topic,
		"weight": req.Weight,
	})
}

// ClearOverride resumes automatic learning for a topic.
//
// DELETE /api/v1/users/{userID}/preferences/{topic}
func (h *Handler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := chi.URLParam(r, "userID")
	topic := chi.URLParam(r, "topic")
	if err := h.svc.ClearOverride(r.Context(), userID, topic); err != nil {
		rw.StoreError(err)
		return
	}

	rw.NoContent()
}

// Evolution serves the snapshot history and current drift.
//
// GET /api/v1/users/{userID}/evolution
func (h *Handler) Evolution(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	snapshots, drift, err := h.svc.History(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		rw.StoreError(err)
		return
	}

	rw.Success(map[string]interface{}{
		"snapshots": snapshots,
		"drift":     drift,
	})
}

// Health reports liveness plus store and analyzer state.
//
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	breakers := make(map[string]string)
	for _, lang := range h.analyzer.Languages() {
		if state, ok := h.analyzer.BreakerState(lang); ok {
			breakers[lang] = state
			metrics.SetBreakerState(lang, state)
		}
	}

	stats := h.svc.Stats()
	hits, misses := h.analyzer.CacheStats()

	rw.Success(map[string]interface{}{
		"status":    "ok",
		"languages": h.analyzer.Languages(),
		"breakers":  breakers,
		"store": map[string]int64{
			"profile_reads":      stats.ProfileReads,
			"profile_writes":     stats.ProfileWrites,
			"events_appended":    stats.EventsAppended,
			"duplicates_ignored": stats.DuplicatesIgnored,
		},
		"analysis_cache": map[string]int64{
			"hits":   hits,
			"misses": misses,
		},
	})
}

func queryInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
