// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package feedback turns feedback events into profile updates.
//
// The package is split in two: Processor is the pure fold that applies
// one enriched event to one profile, and Pipeline is the append-then-fold
// machinery that serializes application per user. Because the fold uses
// a fixed learning rate against the current weight and recency is
// computed from the event's own timestamp, replaying the same event is
// caught by the store's idempotency check, and nearby events applied in
// any order converge to approximately the same profile.
package feedback

import (
	"errors"
	"math"
	"time"

	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/model"
)

// ErrNoSignal indicates an event that carries no usable preference
// signal (for example an implicit event with empty signals).
var ErrNoSignal = errors.New("feedback: event carries no signal")

// EnrichedEvent pairs a feedback event with the analyzed content it
// refers to. Enrichment happens once at submit time so the fold never
// performs content lookups.
type EnrichedEvent struct {
	Event   model.FeedbackEvent `json:"event"`
	Content model.ContentItem   `json:"content"`
}

// Processor applies enriched feedback events to user profiles.
// It holds only configuration and is safe for concurrent use; callers
// are responsible for serializing mutation of any one profile.
type Processor struct {
	cfg      config.FeedbackConfig
	bandStep float64
	bandMin  float64
	bandMax  float64
}

// NewProcessor creates a Processor. Discovery configuration supplies
// the divergence-band defaults and the per-response band step.
func NewProcessor(cfg config.FeedbackConfig, disc config.DiscoveryConfig) *Processor {
	return &Processor{
		cfg:      cfg,
		bandStep: disc.BandStep,
		bandMin:  disc.MinDivergence,
		bandMax:  disc.MaxDivergence,
	}
}

// Apply folds one event into the profile, mutating it in place.
// now anchors recency weighting; events older than the half-life
// contribute proportionally less.
func (p *Processor) Apply(profile *model.UserProfile, ev *EnrichedEvent, now time.Time) error {
	signal, ok := p.signalValue(&ev.Event)
	if !ok {
		return ErrNoSignal
	}

	gate := p.signalWeight(&ev.Event) * p.recency(ev.Event.Timestamp, now)

	p.applyTopics(profile, ev, signal, gate, now)
	p.applyContext(profile, ev, signal, gate)
	p.applyReadingLevel(profile, ev, now)
	if ev.Event.Type == model.FeedbackDiscoveryResponse {
		p.applyDivergenceBand(profile, ev.Event.Discovery)
	}

	profile.EventCount++
	profile.UpdatedAt = now
	return nil
}

// signalValue maps an event to a target direction in [-1, 1].
func (p *Processor) signalValue(ev *model.FeedbackEvent) (float64, bool) {
	switch ev.Type {
	case model.FeedbackExplicitRating:
		if ev.Rating < -1 || ev.Rating > 1 {
			return 0, false
		}
		return ev.Rating, true

	case model.FeedbackLike:
		return 1, true

	case model.FeedbackDislike:
		return -1, true

	case model.FeedbackImplicit:
		if ev.Implicit == nil {
			return 0, false
		}
		return implicitSignal(ev.Implicit), true

	case model.FeedbackDiscoveryResponse:
		switch ev.Discovery {
		case model.DiscoveryResponseSaved:
			return 0.8, true
		case model.DiscoveryResponseInterested:
			return 0.6, true
		case model.DiscoveryResponseNotInterested:
			return -0.6, true
		}
		return 0, false
	}

	return 0, false
}

// implicitSignal derives a direction from reading behavior. Completion
// dominates; a return visit strengthens a positive read and abandonment
// with many pauses strengthens a negative one.
func implicitSignal(sig *model.ImplicitSignals) float64 {
	v := 2*model.ClampUnit(sig.CompletionRate) - 1
	if sig.ReturnVisit {
		v += 0.25
	}
	if sig.PauseEvents > 0 && v < 0 {
		pauses := sig.PauseEvents
		if pauses > 5 {
			pauses = 5
		}
		v -= 0.05 * float64(pauses)
	}
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func (p *Processor) signalWeight(ev *model.FeedbackEvent) float64 {
	if ev.Type.Explicit() {
		return p.cfg.ExplicitWeight
	}
	return p.cfg.ImplicitWeight
}

// recency returns exp(-ln2 * age / halfLife), clamped to [0, 1].
func (p *Processor) recency(observed, now time.Time) float64 {
	age := now.Sub(observed)
	if age <= 0 {
		return 1
	}
	if p.cfg.RecencyHalfLife <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * age.Seconds() / p.cfg.RecencyHalfLife.Seconds())
}

// applyTopics moves each matched topic weight toward the signal,
// proportionally to how strongly the content covers the topic.
// Manually overridden topics are left untouched.
func (p *Processor) applyTopics(profile *model.UserProfile, ev *EnrichedEvent, signal, gate float64, now time.Time) {
	strength := 1.0
	if p.cfg.ExplicitWeight > 0 {
		strength = model.ClampUnit(p.signalWeight(&ev.Event) / p.cfg.ExplicitWeight)
	}

	for topic, topicScore := range ev.Content.TopicScores {
		if topicScore <= 0 {
			continue
		}

		pref := profile.TopicPreferences[topic]
		if pref.Overridden {
			continue
		}

		// Established preferences damp weak signals: the higher the
		// existing confidence and the weaker the signal class, the
		// smaller the move. Fully explicit signals are never damped.
		confidenceGate := 1 - pref.Confidence*(1-strength)
		rate := p.cfg.LearningRate * gate * topicScore * confidenceGate
		pref.Weight = model.ClampWeight(pref.Weight + rate*(signal-pref.Weight))

		// Consistent observations build confidence; contradictions
		// erode it faster than agreement rebuilds it.
		if pref.Confidence == 0 || signal == 0 || sameSign(signal, pref.Weight) {
			pref.Confidence = model.ClampConfidence(pref.Confidence + p.cfg.ConfidenceStep*gate*topicScore)
		} else {
			pref.Confidence = model.ClampConfidence(pref.Confidence * (1 - p.cfg.ConflictDecay*topicScore))
		}

		pref.LastUpdated = now
		profile.TopicPreferences[topic] = pref
	}
}

// applyContext learns contextual affinities from the event's context
// tags. Besides the plain tag, a composite "<tag>|<topic>" key is
// learned against the content's dominant topic so the recommender can
// boost topics per context, and "type:<tag>" keys capture content-type
// affinity from the item's own tags.
func (p *Processor) applyContext(profile *model.UserProfile, ev *EnrichedEvent, signal, gate float64) {
	rate := p.cfg.LearningRate * gate
	move := func(key string) {
		old := profile.ContextualPreferences[key]
		profile.ContextualPreferences[key] = model.ClampWeight(old + rate*(signal-old))
	}

	dominant := ev.Content.DominantTopic()
	for _, tag := range ev.Event.Context {
		if tag == "" {
			continue
		}
		move(tag)
		if dominant != "" {
			move(tag + "|" + dominant)
		}
	}
	for _, tag := range ev.Content.Tags {
		if tag != "" {
			move("type:" + tag)
		}
	}
}

// applyReadingLevel adjusts the per-language reading level from
// implicit behavior. Comfortable completion of above-level content
// pulls the assessment up; other languages are never touched.
func (p *Processor) applyReadingLevel(profile *model.UserProfile, ev *EnrichedEvent, now time.Time) {
	if ev.Event.Type != model.FeedbackImplicit || ev.Event.Implicit == nil {
		return
	}
	lang := ev.Content.Language
	if lang == "" || ev.Content.ReadingLevelScore <= 0 {
		return
	}

	sig := ev.Event.Implicit
	lvl := profile.ReadingLevelFor(lang)
	rate := p.cfg.LearningRate * 0.25 * p.recency(ev.Event.Timestamp, now)

	switch {
	case sig.CompletionRate >= 0.8 && sig.ReadingSpeedRatio >= 0.8 && ev.Content.ReadingLevelScore > lvl.Level:
		// Read above level without struggling.
		lvl.Level += rate * (ev.Content.ReadingLevelScore - lvl.Level)
		lvl.Confidence = model.ClampConfidence(lvl.Confidence + p.cfg.ConfidenceStep)
	case sig.CompletionRate < 0.3 && ev.Content.ReadingLevelScore > lvl.Level+1:
		// Abandoned content well above level confirms the assessment.
		lvl.Confidence = model.ClampConfidence(lvl.Confidence + p.cfg.ConfidenceStep/2)
	default:
		return
	}

	lvl.LastUpdated = now
	profile.ReadingLevels[lang] = lvl
}

// applyDivergenceBand nudges the user's discovery comfort band.
// Positive responses widen the upper edge; rejections pull it back in.
// The band always stays inside the configured defaults' outer range.
func (p *Processor) applyDivergenceBand(profile *model.UserProfile, resp model.DiscoveryResponse) {
	band := profile.DivergenceBand
	if band.Max == 0 {
		band.Min, band.Max = p.bandMin, p.bandMax
	}

	switch resp {
	case model.DiscoveryResponseInterested, model.DiscoveryResponseSaved:
		band.Max += p.bandStep
		if band.Max > 1 {
			band.Max = 1
		}
	case model.DiscoveryResponseNotInterested:
		band.Max -= p.bandStep
		if band.Max < band.Min+p.bandStep {
			band.Max = band.Min + p.bandStep
		}
	default:
		return
	}

	profile.DivergenceBand = band
}

func sameSign(a, b float64) bool {
	return (a >= 0 && b >= 0) || (a <= 0 && b <= 0)
}
