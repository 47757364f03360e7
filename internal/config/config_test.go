// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package config

import (
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() config failed validation: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
		},
		{
			name:    "zero learning rate",
			mutate:  func(c *Config) { c.Feedback.LearningRate = 0 },
			wantErr: true,
		},
		{
			name:    "learning rate above one",
			mutate:  func(c *Config) { c.Feedback.LearningRate = 1.5 },
			wantErr: true,
		},
		{
			name:    "negative half life",
			mutate:  func(c *Config) { c.Feedback.RecencyHalfLife = -time.Hour },
			wantErr: true,
		},
		{
			name: "implicit weight above explicit",
			mutate: func(c *Config) {
				c.Feedback.ExplicitWeight = 0.5
				c.Feedback.ImplicitWeight = 0.8
			},
			wantErr: true,
		},
		{
			name:    "all scoring shares zero",
			mutate:  func(c *Config) { c.Scoring.TopicShare, c.Scoring.TypeShare, c.Scoring.LevelShare = 0, 0, 0 },
			wantErr: true,
		},
		{
			name:    "max limit below default limit",
			mutate:  func(c *Config) { c.Recommend.MaxLimit = c.Recommend.DefaultLimit - 1 },
			wantErr: true,
		},
		{
			name:    "boost bounds exclude neutral",
			mutate:  func(c *Config) { c.Recommend.BoostFloor = 1.1 },
			wantErr: true,
		},
		{
			name: "inverted divergence band",
			mutate: func(c *Config) {
				c.Discovery.MinDivergence = 0.8
				c.Discovery.MaxDivergence = 0.4
			},
			wantErr: true,
		},
		{
			name:    "accessibility threshold out of range",
			mutate:  func(c *Config) { c.Discovery.AccessibilityThreshold = 1.5 },
			wantErr: true,
		},
		{
			name:    "history limit too small",
			mutate:  func(c *Config) { c.Evolution.HistoryLimit = 1 },
			wantErr: true,
		},
		{
			name:    "zero analyzer timeout",
			mutate:  func(c *Config) { c.Analyzer.Timeout = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"FEEDBACK_HALF_LIFE", "feedback.recency_half_life"},
		{"DISCOVERY_MIN_DIVERGENCE", "discovery.min_divergence"},
		{"RECOMMEND_TIME_TOLERANCE", "recommend.time_tolerance"},
		{"SOME_RANDOM_VAR", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.in); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
