// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package config defines the layered application configuration.
// All tuning constants the personalization core depends on (decay
// half-lives, divergence bands, time tolerances) live here rather than
// being hard-coded at call sites, so deployments can adjust them
// without code changes.
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server" json:"server"`
	Logging   LoggingConfig   `koanf:"logging" json:"logging"`
	Store     StoreConfig     `koanf:"store" json:"store"`
	Feedback  FeedbackConfig  `koanf:"feedback" json:"feedback"`
	Scoring   ScoringConfig   `koanf:"scoring" json:"scoring"`
	Recommend RecommendConfig `koanf:"recommend" json:"recommend"`
	Discovery DiscoveryConfig `koanf:"discovery" json:"discovery"`
	Evolution EvolutionConfig `koanf:"evolution" json:"evolution"`
	Analyzer  AnalyzerConfig  `koanf:"analyzer" json:"analyzer"`
	Content   ContentConfig   `koanf:"content" json:"content"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host" json:"host"`

	// Port is the listen port.
	Port int `koanf:"port" json:"port"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `koanf:"timeout" json:"timeout"`

	// RateLimitReqs is the allowed requests per window per client.
	RateLimitReqs int `koanf:"rate_limit_reqs" json:"rate_limit_reqs"`

	// RateLimitWindow is the rate-limit window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window" json:"rate_limit_window"`

	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `koanf:"cors_origins" json:"cors_origins"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	// Level is the minimum log level.
	Level string `koanf:"level" json:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format" json:"format"`

	// Caller includes caller file/line in log events.
	Caller bool `koanf:"caller" json:"caller"`
}

// StoreConfig configures the Badger-backed profile store.
type StoreConfig struct {
	// Path is the Badger database directory. Empty selects an
	// in-memory database (tests).
	Path string `koanf:"path" json:"path"`

	// SyncWrites forces fsync on every write. Required for the
	// durable append-before-fold guarantee.
	SyncWrites bool `koanf:"sync_writes" json:"sync_writes"`

	// DedupeTTL bounds how long applied event IDs are retained for
	// idempotency checks.
	DedupeTTL time.Duration `koanf:"dedupe_ttl" json:"dedupe_ttl"`
}

// FeedbackConfig tunes the feedback fold.
type FeedbackConfig struct {
	// LearningRate scales preference updates toward the signal delta.
	LearningRate float64 `koanf:"learning_rate" json:"learning_rate"`

	// RecencyHalfLife is the half-life for recency weighting of
	// observations; older events contribute exponentially less.
	RecencyHalfLife time.Duration `koanf:"recency_half_life" json:"recency_half_life"`

	// ExplicitWeight is the signal weight for explicit feedback.
	ExplicitWeight float64 `koanf:"explicit_weight" json:"explicit_weight"`

	// ImplicitWeight is the signal weight for implicit feedback.
	// Kept below ExplicitWeight so behavior noise cannot outvote
	// stated preferences.
	ImplicitWeight float64 `koanf:"implicit_weight" json:"implicit_weight"`

	// ConfidenceStep is the per-consistent-observation confidence gain.
	ConfidenceStep float64 `koanf:"confidence_step" json:"confidence_step"`

	// ConflictDecay is the confidence multiplier applied when a signal
	// contradicts the current weight direction.
	ConflictDecay float64 `koanf:"conflict_decay" json:"conflict_decay"`

	// WorkerCount is the number of fold workers. Events for one user
	// always hash to the same worker, serializing per-user mutation.
	WorkerCount int `koanf:"worker_count" json:"worker_count"`

	// BufferSize is the per-worker fold queue depth.
	BufferSize int `koanf:"buffer_size" json:"buffer_size"`
}

// ScoringConfig tunes the interest scorer.
type ScoringConfig struct {
	// TopicShare, TypeShare and LevelShare are the relative shares of
	// topic match, content-type affinity and reading-level fit in the
	// final score. Normalized at runtime.
	TopicShare float64 `koanf:"topic_share" json:"topic_share"`
	TypeShare  float64 `koanf:"type_share" json:"type_share"`
	LevelShare float64 `koanf:"level_share" json:"level_share"`

	// AbovePenaltyPerBand is the fit penalty per band of content
	// difficulty above the user's level.
	AbovePenaltyPerBand float64 `koanf:"above_penalty_per_band" json:"above_penalty_per_band"`

	// BelowPenaltyPerBand is the (milder) penalty per band below the
	// user's level. Below-level content is comfortable, not wasted.
	BelowPenaltyPerBand float64 `koanf:"below_penalty_per_band" json:"below_penalty_per_band"`
}

// RecommendConfig tunes the contextual recommender.
type RecommendConfig struct {
	// DefaultLimit is applied when a request omits a limit.
	DefaultLimit int `koanf:"default_limit" json:"default_limit"`

	// MaxLimit caps the requestable result count.
	MaxLimit int `koanf:"max_limit" json:"max_limit"`

	// MaxCandidates caps the candidate pool size per request.
	MaxCandidates int `koanf:"max_candidates" json:"max_candidates"`

	// TimeTolerance widens the availableTime filter: items up to
	// availableTime*(1+tolerance) pass.
	TimeTolerance float64 `koanf:"time_tolerance" json:"time_tolerance"`

	// BoostFloor and BoostCeil bound contextual multiplicative boosts.
	BoostFloor float64 `koanf:"boost_floor" json:"boost_floor"`
	BoostCeil  float64 `koanf:"boost_ceil" json:"boost_ceil"`

	// MinContextSamples is the minimum interaction history required
	// before a missing context is inferred from history.
	MinContextSamples int `koanf:"min_context_samples" json:"min_context_samples"`

	// ContextHistoryWindow is how many recent events feed inference.
	ContextHistoryWindow int `koanf:"context_history_window" json:"context_history_window"`

	// DiversityDecay is the multiplicative penalty applied to
	// remaining candidates sharing a picked item's dominant topic.
	DiversityDecay float64 `koanf:"diversity_decay" json:"diversity_decay"`

	// ColdStartEventThreshold is the event count below which a user is
	// treated as cold-start and served the exploratory set.
	ColdStartEventThreshold int `koanf:"cold_start_event_threshold" json:"cold_start_event_threshold"`

	// LevelBandWiden is the reading-level band widening applied in the
	// last constraint-relaxation step.
	LevelBandWiden float64 `koanf:"level_band_widen" json:"level_band_widen"`

	// CacheTTL is the response cache time-to-live.
	CacheTTL time.Duration `koanf:"cache_ttl" json:"cache_ttl"`

	// CacheMaxEntries caps the response cache size.
	CacheMaxEntries int `koanf:"cache_max_entries" json:"cache_max_entries"`
}

// DiscoveryConfig tunes the discovery engine.
type DiscoveryConfig struct {
	// ExploredConfidence is the confidence above which a topic counts
	// as explored.
	ExploredConfidence float64 `koanf:"explored_confidence" json:"explored_confidence"`

	// MinDivergence and MaxDivergence are the default divergence band.
	// Per-user bands drift from these with discovery responses.
	MinDivergence float64 `koanf:"min_divergence" json:"min_divergence"`
	MaxDivergence float64 `koanf:"max_divergence" json:"max_divergence"`

	// AccessibilityThreshold is the minimum readingLevelFit a
	// discovery candidate must meet. Divergence never sacrifices
	// comprehensibility.
	AccessibilityThreshold float64 `koanf:"accessibility_threshold" json:"accessibility_threshold"`

	// NoveltyWeight is the share of the divergence score contributed
	// by untried content types.
	NoveltyWeight float64 `koanf:"novelty_weight" json:"novelty_weight"`

	// BandStep is how far one accepted/rejected discovery moves the
	// per-user band edge.
	BandStep float64 `koanf:"band_step" json:"band_step"`

	// BridgeMinScore is the minimum content topic score for a topic to
	// qualify as a bridge.
	BridgeMinScore float64 `koanf:"bridge_min_score" json:"bridge_min_score"`
}

// EvolutionConfig tunes the preference evolution tracker.
type EvolutionConfig struct {
	// Interval is the scheduled snapshot cadence.
	Interval time.Duration `koanf:"interval" json:"interval"`

	// EventThreshold triggers a snapshot after this many new events.
	EventThreshold int `koanf:"event_threshold" json:"event_threshold"`

	// DriftThreshold is the vector distance above which a preference
	// shift is flagged.
	DriftThreshold float64 `koanf:"drift_threshold" json:"drift_threshold"`

	// HistoryLimit bounds the retained snapshot history per user.
	HistoryLimit int `koanf:"history_limit" json:"history_limit"`

	// TrendWindow is how many recent snapshots feed the trend slope.
	TrendWindow int `koanf:"trend_window" json:"trend_window"`

	// TrendEpsilon is the slope magnitude below which a trend is
	// considered stable.
	TrendEpsilon float64 `koanf:"trend_epsilon" json:"trend_epsilon"`
}

// AnalyzerConfig tunes content analyzer calls.
type AnalyzerConfig struct {
	// Timeout bounds a single analyze call.
	Timeout time.Duration `koanf:"timeout" json:"timeout"`

	// BreakerFailures is the consecutive-failure threshold that opens
	// the analyzer circuit breaker.
	BreakerFailures uint32 `koanf:"breaker_failures" json:"breaker_failures"`

	// BreakerCooldown is how long the breaker stays open.
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" json:"breaker_cooldown"`

	// EmbeddingCacheSize bounds the embedding cache entry count.
	EmbeddingCacheSize int `koanf:"embedding_cache_size" json:"embedding_cache_size"`

	// EmbeddingCacheTTL is the embedding cache time-to-live.
	EmbeddingCacheTTL time.Duration `koanf:"embedding_cache_ttl" json:"embedding_cache_ttl"`
}

// ContentConfig tunes content store access.
type ContentConfig struct {
	// QueryTimeout bounds a candidate query; on expiry the last cached
	// candidate set is served and the response marked incomplete.
	QueryTimeout time.Duration `koanf:"query_timeout" json:"query_timeout"`

	// CandidateCacheTTL is how long a cached candidate set stays
	// usable as a fallback.
	CandidateCacheTTL time.Duration `koanf:"candidate_cache_ttl" json:"candidate_cache_ttl"`
}

// Default returns a Config with production defaults. Values here are
// starting points, not canon; every deployment-sensitive constant can
// be overridden by file or environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8642,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Path:       "/data/quillfeed",
			SyncWrites: true,
			DedupeTTL:  30 * 24 * time.Hour,
		},
		Feedback: FeedbackConfig{
			LearningRate:    0.3,
			RecencyHalfLife: 14 * 24 * time.Hour,
			ExplicitWeight:  1.0,
			ImplicitWeight:  0.4,
			ConfidenceStep:  0.08,
			ConflictDecay:   0.85,
			WorkerCount:     4,
			BufferSize:      256,
		},
		Scoring: ScoringConfig{
			TopicShare:          0.6,
			TypeShare:           0.15,
			LevelShare:          0.25,
			AbovePenaltyPerBand: 0.35,
			BelowPenaltyPerBand: 0.1,
		},
		Recommend: RecommendConfig{
			DefaultLimit:            10,
			MaxLimit:                50,
			MaxCandidates:           500,
			TimeTolerance:           0.2,
			BoostFloor:              0.8,
			BoostCeil:               1.2,
			MinContextSamples:       5,
			ContextHistoryWindow:    50,
			DiversityDecay:          0.7,
			ColdStartEventThreshold: 5,
			LevelBandWiden:          1.0,
			CacheTTL:                2 * time.Minute,
			CacheMaxEntries:         5000,
		},
		Discovery: DiscoveryConfig{
			ExploredConfidence:     0.5,
			MinDivergence:          0.3,
			MaxDivergence:          0.75,
			AccessibilityThreshold: 0.6,
			NoveltyWeight:          0.25,
			BandStep:               0.05,
			BridgeMinScore:         0.2,
		},
		Evolution: EvolutionConfig{
			Interval:       24 * time.Hour,
			EventThreshold: 25,
			DriftThreshold: 0.35,
			HistoryLimit:   30,
			TrendWindow:    5,
			TrendEpsilon:   0.02,
		},
		Analyzer: AnalyzerConfig{
			Timeout:            5 * time.Second,
			BreakerFailures:    5,
			BreakerCooldown:    30 * time.Second,
			EmbeddingCacheSize: 10000,
			EmbeddingCacheTTL:  time.Hour,
		},
		Content: ContentConfig{
			QueryTimeout:      3 * time.Second,
			CandidateCacheTTL: 10 * time.Minute,
		},
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}

	if c.Feedback.LearningRate <= 0 || c.Feedback.LearningRate > 1 {
		return fmt.Errorf("feedback.learning_rate must be in (0, 1], got %f", c.Feedback.LearningRate)
	}
	if c.Feedback.RecencyHalfLife <= 0 {
		return fmt.Errorf("feedback.recency_half_life must be positive, got %v", c.Feedback.RecencyHalfLife)
	}
	if c.Feedback.ImplicitWeight > c.Feedback.ExplicitWeight {
		return fmt.Errorf("feedback.implicit_weight (%f) must not exceed explicit_weight (%f)",
			c.Feedback.ImplicitWeight, c.Feedback.ExplicitWeight)
	}
	if c.Feedback.ConflictDecay <= 0 || c.Feedback.ConflictDecay > 1 {
		return fmt.Errorf("feedback.conflict_decay must be in (0, 1], got %f", c.Feedback.ConflictDecay)
	}
	if c.Feedback.WorkerCount < 1 {
		return fmt.Errorf("feedback.worker_count must be positive, got %d", c.Feedback.WorkerCount)
	}

	if c.Scoring.TopicShare < 0 || c.Scoring.TypeShare < 0 || c.Scoring.LevelShare < 0 {
		return fmt.Errorf("scoring shares must be non-negative")
	}
	if c.Scoring.TopicShare+c.Scoring.TypeShare+c.Scoring.LevelShare == 0 {
		return fmt.Errorf("scoring shares must not all be zero")
	}

	if c.Recommend.DefaultLimit < 1 {
		return fmt.Errorf("recommend.default_limit must be positive, got %d", c.Recommend.DefaultLimit)
	}
	if c.Recommend.MaxLimit < c.Recommend.DefaultLimit {
		return fmt.Errorf("recommend.max_limit must be >= default_limit, got %d < %d",
			c.Recommend.MaxLimit, c.Recommend.DefaultLimit)
	}
	if c.Recommend.TimeTolerance < 0 {
		return fmt.Errorf("recommend.time_tolerance must be non-negative, got %f", c.Recommend.TimeTolerance)
	}
	if c.Recommend.BoostFloor > 1 || c.Recommend.BoostCeil < 1 {
		return fmt.Errorf("recommend boost bounds must bracket 1.0, got [%f, %f]",
			c.Recommend.BoostFloor, c.Recommend.BoostCeil)
	}
	if c.Recommend.DiversityDecay <= 0 || c.Recommend.DiversityDecay > 1 {
		return fmt.Errorf("recommend.diversity_decay must be in (0, 1], got %f", c.Recommend.DiversityDecay)
	}

	if c.Discovery.MinDivergence < 0 || c.Discovery.MaxDivergence > 1 {
		return fmt.Errorf("discovery band must lie within [0, 1], got [%f, %f]",
			c.Discovery.MinDivergence, c.Discovery.MaxDivergence)
	}
	if c.Discovery.MinDivergence >= c.Discovery.MaxDivergence {
		return fmt.Errorf("discovery.min_divergence must be < max_divergence, got %f >= %f",
			c.Discovery.MinDivergence, c.Discovery.MaxDivergence)
	}
	if c.Discovery.AccessibilityThreshold < 0 || c.Discovery.AccessibilityThreshold > 1 {
		return fmt.Errorf("discovery.accessibility_threshold must be in [0, 1], got %f",
			c.Discovery.AccessibilityThreshold)
	}

	if c.Evolution.HistoryLimit < 2 {
		return fmt.Errorf("evolution.history_limit must be >= 2, got %d", c.Evolution.HistoryLimit)
	}
	if c.Evolution.TrendWindow < 2 {
		return fmt.Errorf("evolution.trend_window must be >= 2, got %d", c.Evolution.TrendWindow)
	}

	if c.Analyzer.Timeout <= 0 {
		return fmt.Errorf("analyzer.timeout must be positive, got %v", c.Analyzer.Timeout)
	}
	if c.Content.QueryTimeout <= 0 {
		return fmt.Errorf("content.query_timeout must be positive, got %v", c.Content.QueryTimeout)
	}

	return nil
}
