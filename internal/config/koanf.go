// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/quillfeed/config.yaml",
	"/etc/quillfeed/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources:
//  1. Defaults: built-in values from Default()
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: highest priority
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied through environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are skipped, so stray environment
// noise never pollutes the configuration.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - FEEDBACK_HALF_LIFE -> feedback.recency_half_life
//   - DISCOVERY_MIN_DIVERGENCE -> discovery.min_divergence
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",
		"cors_origins":        "server.cors_origins",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Store
		"store_path":        "store.path",
		"store_sync_writes": "store.sync_writes",
		"store_dedupe_ttl":  "store.dedupe_ttl",

		// Feedback fold
		"feedback_learning_rate":   "feedback.learning_rate",
		"feedback_half_life":       "feedback.recency_half_life",
		"feedback_explicit_weight": "feedback.explicit_weight",
		"feedback_implicit_weight": "feedback.implicit_weight",
		"feedback_confidence_step": "feedback.confidence_step",
		"feedback_conflict_decay":  "feedback.conflict_decay",
		"feedback_workers":         "feedback.worker_count",
		"feedback_buffer_size":     "feedback.buffer_size",

		// Scoring
		"scoring_topic_share":   "scoring.topic_share",
		"scoring_type_share":    "scoring.type_share",
		"scoring_level_share":   "scoring.level_share",
		"scoring_above_penalty": "scoring.above_penalty_per_band",
		"scoring_below_penalty": "scoring.below_penalty_per_band",

		// Recommender
		"recommend_default_limit":       "recommend.default_limit",
		"recommend_max_limit":           "recommend.max_limit",
		"recommend_max_candidates":      "recommend.max_candidates",
		"recommend_time_tolerance":      "recommend.time_tolerance",
		"recommend_boost_floor":         "recommend.boost_floor",
		"recommend_boost_ceil":          "recommend.boost_ceil",
		"recommend_min_context_samples": "recommend.min_context_samples",
		"recommend_context_window":      "recommend.context_history_window",
		"recommend_diversity_decay":     "recommend.diversity_decay",
		"recommend_cold_start_events":   "recommend.cold_start_event_threshold",
		"recommend_level_band_widen":    "recommend.level_band_widen",
		"recommend_cache_ttl":           "recommend.cache_ttl",
		"recommend_cache_max_entries":   "recommend.cache_max_entries",

		// Discovery
		"discovery_explored_confidence": "discovery.explored_confidence",
		"discovery_min_divergence":      "discovery.min_divergence",
		"discovery_max_divergence":      "discovery.max_divergence",
		"discovery_accessibility":       "discovery.accessibility_threshold",
		"discovery_novelty_weight":      "discovery.novelty_weight",
		"discovery_band_step":           "discovery.band_step",
		"discovery_bridge_min_score":    "discovery.bridge_min_score",

		// Evolution
		"evolution_interval":        "evolution.interval",
		"evolution_event_threshold": "evolution.event_threshold",
		"evolution_drift_threshold": "evolution.drift_threshold",
		"evolution_history_limit":   "evolution.history_limit",
		"evolution_trend_window":    "evolution.trend_window",
		"evolution_trend_epsilon":   "evolution.trend_epsilon",

		// Analyzer
		"analyzer_timeout":          "analyzer.timeout",
		"analyzer_breaker_failures": "analyzer.breaker_failures",
		"analyzer_breaker_cooldown": "analyzer.breaker_cooldown",
		"analyzer_embedding_cache":  "analyzer.embedding_cache_size",
		"analyzer_embedding_ttl":    "analyzer.embedding_cache_ttl",

		// Content store
		"content_query_timeout":       "content.query_timeout",
		"content_candidate_cache_ttl": "content.candidate_cache_ttl",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
