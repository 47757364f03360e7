// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package evolution tracks how preference profiles change over time.
// It snapshots preference vectors on a schedule or after enough
// feedback, detects drift between snapshots, and derives per-topic
// trends that the transparency surface reports.
package evolution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/metrics"
	"github.com/quillfeed/quillfeed/internal/model"
	"github.com/quillfeed/quillfeed/internal/store"
)

// Snapshot trigger reasons.
const (
	TriggerInitial        = "initial"
	TriggerScheduled      = "scheduled"
	TriggerEventThreshold = "event_count"
	TriggerDrift          = "drift"
)

// Tracker snapshots preference evolution for all stored profiles.
type Tracker struct {
	cfg    config.EvolutionConfig
	store  store.ProfileStore
	logger zerolog.Logger
}

// NewTracker creates a Tracker.
func NewTracker(cfg config.EvolutionConfig, st store.ProfileStore, logger zerolog.Logger) *Tracker {
	return &Tracker{
		cfg:    cfg,
		store:  st,
		logger: logger.With().Str("component", "evolution_tracker").Logger(),
	}
}

// Serve sweeps all profiles on the configured interval until ctx is
// done. It implements suture.Service.
func (t *Tracker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.Sweep(ctx); err != nil {
				t.logger.Error().Err(err).Msg("evolution sweep failed")
			}
		}
	}
}

// Sweep checks every profile and snapshots the ones that are due.
func (t *Tracker) Sweep(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.EvolutionSweepDuration.Observe(time.Since(start).Seconds())
	}()

	users, err := t.store.Users(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var taken int
	for _, userID := range users {
		snap, err := t.Observe(ctx, userID)
		if err != nil {
			t.logger.Error().Err(err).Str("user_id", userID).Msg("snapshot failed")
			continue
		}
		if snap != nil {
			taken++
		}
	}

	t.logger.Debug().Int("users", len(users)).Int("snapshots", taken).Msg("evolution sweep done")
	return nil
}

// Observe snapshots one user's profile if a trigger fires, updating
// topic trends from the extended history. It returns the new snapshot,
// or nil when none was due. The trigger is checked on a plain read
// first so idle profiles cost no write, then re-checked under the
// update since the profile may change in between.
func (t *Tracker) Observe(ctx context.Context, userID string) (*model.PreferenceSnapshot, error) {
	profile, err := t.store.Read(ctx, userID)
	if errors.Is(err, store.ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t.trigger(profile, time.Now().UTC()) == "" {
		return nil, nil
	}

	var taken *model.PreferenceSnapshot

	_, err = t.store.AtomicUpdate(ctx, userID, func(profile *model.UserProfile) error {
		now := time.Now().UTC()
		reason := t.trigger(profile, now)
		if reason == "" {
			return nil
		}

		snap := buildSnapshot(profile, now, reason)
		profile.EvolutionHistory = append(profile.EvolutionHistory, snap)
		if len(profile.EvolutionHistory) > t.cfg.HistoryLimit {
			// Oldest snapshots age out; the window stays bounded.
			excess := len(profile.EvolutionHistory) - t.cfg.HistoryLimit
			profile.EvolutionHistory = append([]model.PreferenceSnapshot(nil), profile.EvolutionHistory[excess:]...)
		}

		t.updateTrends(profile)
		taken = &snap
		return nil
	})
	if err != nil {
		return nil, err
	}

	if taken != nil {
		metrics.EvolutionSnapshots.WithLabelValues(taken.TriggerReason).Inc()
		t.logger.Info().
			Str("user_id", userID).
			Str("snapshot_id", taken.ID).
			Str("reason", taken.TriggerReason).
			Msg("preference snapshot taken")
	}
	return taken, nil
}

// trigger decides whether a snapshot is due and why. Drift beats the
// routine triggers so the reason records the interesting case.
func (t *Tracker) trigger(profile *model.UserProfile, now time.Time) string {
	if profile.EventCount == 0 {
		return ""
	}
	if len(profile.EvolutionHistory) == 0 {
		return TriggerInitial
	}

	last := profile.EvolutionHistory[len(profile.EvolutionHistory)-1]
	if drift, _ := driftSince(profile, &last); drift > t.cfg.DriftThreshold {
		return TriggerDrift
	}
	if profile.EventCount-last.EventCount >= int64(t.cfg.EventThreshold) {
		return TriggerEventThreshold
	}
	if now.Sub(last.Timestamp) >= t.cfg.Interval {
		return TriggerScheduled
	}
	return ""
}

// DriftReport describes the movement since the previous snapshot.
type DriftReport struct {
	// Distance is the normalized preference-vector distance.
	Distance float64 `json:"distance"`

	// ResponsibleTopics lists topics by contribution to the distance.
	ResponsibleTopics []string `json:"responsible_topics,omitempty"`
}

// Drift reports the drift between the current weights and the most
// recent snapshot. Without history there is nothing to drift from.
func (t *Tracker) Drift(ctx context.Context, userID string) (*DriftReport, error) {
	profile, err := t.store.Read(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(profile.EvolutionHistory) == 0 {
		return &DriftReport{}, nil
	}

	last := profile.EvolutionHistory[len(profile.EvolutionHistory)-1]
	distance, responsible := driftSince(profile, &last)
	return &DriftReport{Distance: distance, ResponsibleTopics: responsible}, nil
}

// driftSince computes the RMS weight distance over the union of topics
// plus the topics ranked by their contribution.
func driftSince(profile *model.UserProfile, snap *model.PreferenceSnapshot) (float64, []string) {
	union := make(map[string]struct{}, len(profile.TopicPreferences)+len(snap.Weights))
	for topic := range profile.TopicPreferences {
		union[topic] = struct{}{}
	}
	for topic := range snap.Weights {
		union[topic] = struct{}{}
	}
	if len(union) == 0 {
		return 0, nil
	}

	type delta struct {
		topic string
		d     float64
	}
	deltas := make([]delta, 0, len(union))

	var sum float64
	for topic := range union {
		d := math.Abs(profile.TopicPreferences[topic].Weight - snap.Weights[topic])
		sum += d * d
		if d > 0 {
			deltas = append(deltas, delta{topic, d})
		}
	}
	distance := math.Sqrt(sum / float64(len(union)))

	sort.Slice(deltas, func(i, j int) bool {
		if deltas[i].d != deltas[j].d {
			return deltas[i].d > deltas[j].d
		}
		return deltas[i].topic < deltas[j].topic
	})
	responsible := make([]string, 0, 3)
	for i := 0; i < len(deltas) && i < 3; i++ {
		responsible = append(responsible, deltas[i].topic)
	}

	return distance, responsible
}

// updateTrends recomputes each topic's trend from the snapshot window.
func (t *Tracker) updateTrends(profile *model.UserProfile) {
	window := profile.EvolutionHistory
	if len(window) > t.cfg.TrendWindow {
		window = window[len(window)-t.cfg.TrendWindow:]
	}
	if len(window) < 2 {
		return
	}

	for topic, pref := range profile.TopicPreferences {
		slope := trendSlope(window, topic)
		switch {
		case slope > t.cfg.TrendEpsilon:
			pref.Trend = model.TrendIncreasing
		case slope < -t.cfg.TrendEpsilon:
			pref.Trend = model.TrendDecreasing
		default:
			pref.Trend = model.TrendStable
		}
		profile.TopicPreferences[topic] = pref
	}
}

// trendSlope fits a least-squares line through the topic's weights
// over the snapshot window, using the snapshot index as x.
func trendSlope(window []model.PreferenceSnapshot, topic string) float64 {
	n := float64(len(window))
	var sumX, sumY, sumXY, sumXX float64
	for i, snap := range window {
		x := float64(i)
		y := snap.Weights[topic]
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func buildSnapshot(profile *model.UserProfile, now time.Time, reason string) model.PreferenceSnapshot {
	weights := make(map[string]float64, len(profile.TopicPreferences))
	var confSum float64
	for topic, pref := range profile.TopicPreferences {
		weights[topic] = pref.Weight
		confSum += pref.Confidence
	}

	aggregate := 0.0
	if len(profile.TopicPreferences) > 0 {
		aggregate = confSum / float64(len(profile.TopicPreferences))
	}

	return model.PreferenceSnapshot{
		ID:                  uuid.New().String(),
		Timestamp:           now,
		Weights:             weights,
		AggregateConfidence: aggregate,
		TriggerReason:       reason,
		EventCount:          profile.EventCount,
	}
}
