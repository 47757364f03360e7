// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package recommend

import (
	"context"
	"strings"

	"github.com/quillfeed/quillfeed/internal/model"
)

// contextTags flattens a request context into the tag vocabulary the
// feedback fold learns ("time:morning", "device:mobile", "mood:curious").
func contextTags(reqCtx *model.RequestContext) []string {
	if reqCtx == nil {
		return nil
	}

	var tags []string
	if reqCtx.TimeOfDay != "" {
		tags = append(tags, "time:"+reqCtx.TimeOfDay)
	}
	if reqCtx.DeviceType != "" {
		tags = append(tags, "device:"+reqCtx.DeviceType)
	}
	if reqCtx.Location != "" {
		tags = append(tags, "location:"+reqCtx.Location)
	}
	if reqCtx.Mood != "" {
		tags = append(tags, "mood:"+reqCtx.Mood)
	}
	return tags
}

// resolveContext fills missing context dimensions from the user's
// recent interaction history when enough samples exist. It returns the
// effective context and whether any dimension was inferred. Inference
// failing is not an error; ranking proceeds uncontextualized.
func (e *Engine) resolveContext(ctx context.Context, req *model.RecommendationRequest, profile *model.UserProfile) (*model.RequestContext, bool) {
	reqCtx := req.Context
	if reqCtx == nil {
		reqCtx = &model.RequestContext{}
	}
	if reqCtx.TimeOfDay != "" && reqCtx.DeviceType != "" && reqCtx.Mood != "" {
		return reqCtx, false
	}

	events, err := e.store.RecentEvents(ctx, req.UserID, e.cfg.ContextHistoryWindow)
	if err != nil || len(events) < e.cfg.MinContextSamples {
		return reqCtx, false
	}

	// Count historical tags per dimension and take the mode.
	counts := make(map[string]map[string]int)
	for _, ev := range events {
		for _, tag := range ev.Context {
			dim, value, ok := strings.Cut(tag, ":")
			if !ok || value == "" {
				continue
			}
			if counts[dim] == nil {
				counts[dim] = make(map[string]int)
			}
			counts[dim][value]++
		}
	}

	inferred := false
	resolved := *reqCtx
	if resolved.TimeOfDay == "" {
		if v, ok := mode(counts["time"], e.cfg.MinContextSamples); ok {
			resolved.TimeOfDay = v
			inferred = true
		}
	}
	if resolved.DeviceType == "" {
		if v, ok := mode(counts["device"], e.cfg.MinContextSamples); ok {
			resolved.DeviceType = v
			inferred = true
		}
	}
	if resolved.Mood == "" {
		if v, ok := mode(counts["mood"], e.cfg.MinContextSamples); ok {
			resolved.Mood = v
			inferred = true
		}
	}

	return &resolved, inferred
}

// mode returns the most frequent value if its dimension has at least
// minSamples observations in total, ties broken lexicographically.
func mode(values map[string]int, minSamples int) (string, bool) {
	var total int
	best := ""
	for value, n := range values {
		total += n
		if best == "" || n > values[best] || (n == values[best] && value < best) {
			best = value
		}
	}
	if best == "" || total < minSamples {
		return "", false
	}
	return best, true
}
