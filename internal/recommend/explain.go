// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package recommend

import (
	"fmt"

	"github.com/quillfeed/quillfeed/internal/model"
)

// explainFactors attaches human-readable detail to the score factors,
// dropping near-neutral ones so explanations stay short.
func explainFactors(factors []model.ScoreFactor) []model.ScoreFactor {
	out := make([]model.ScoreFactor, 0, len(factors))
	for _, f := range factors {
		if f.Detail == "" {
			f.Detail = factorDetail(f)
		}
		if f.Detail == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func factorDetail(f model.ScoreFactor) string {
	switch f.Name {
	case "topic_match":
		switch {
		case f.Value >= 0.75:
			return "strongly matches your topic interests"
		case f.Value >= 0.55:
			return "matches some of your topic interests"
		case f.Value <= 0.35:
			return "outside your usual topics"
		}
	case "type_affinity":
		switch {
		case f.Value >= 0.65:
			return "a format you tend to enjoy"
		case f.Value <= 0.35:
			return "a format you read less often"
		}
	case "reading_level_fit":
		switch {
		case f.Value >= 0.9:
			return "at a comfortable reading level"
		case f.Value <= 0.5:
			return "may be challenging at your current level"
		}
	case "context_boost":
		if f.Value > 1 {
			return fmt.Sprintf("boosted %.0f%% for your current context", (f.Value-1)*100)
		}
		if f.Value < 1 {
			return fmt.Sprintf("reduced %.0f%% for your current context", (1-f.Value)*100)
		}
	}
	return ""
}
