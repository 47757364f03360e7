// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package analyzer extracts topics, reading level and semantic vectors
// from content text. Analysis is language-dispatched: each supported
// language registers its own analyzer, and unsupported languages fail
// explicitly rather than producing meaningless scores.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/metrics"
	"github.com/quillfeed/quillfeed/internal/model"
)

// ErrUnsupportedLanguage is returned for languages with no registered
// analyzer. Callers surface this instead of guessing.
var ErrUnsupportedLanguage = errors.New("analyzer: unsupported language")

// ContentAnalyzer produces an Analysis for one piece of text.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, contentID, text string) (*model.Analysis, error)
}

// Service dispatches analysis by language and shields the primary
// analyzers behind a per-language circuit breaker with a timeout.
// When a primary analyzer fails or its breaker is open, the keyword
// fallback produces a degraded result marked LowConfidence.
type Service struct {
	cfg      config.AnalyzerConfig
	primary  map[string]ContentAnalyzer
	fallback map[string]ContentAnalyzer
	breakers map[string]*gobreaker.CircuitBreaker[*model.Analysis]
	cache    *analysisCache
	logger   zerolog.Logger
}

// NewService creates a Service with no registered languages.
func NewService(cfg config.AnalyzerConfig, logger zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		primary:  make(map[string]ContentAnalyzer),
		fallback: make(map[string]ContentAnalyzer),
		breakers: make(map[string]*gobreaker.CircuitBreaker[*model.Analysis]),
		cache:    newAnalysisCache(cfg.EmbeddingCacheSize, cfg.EmbeddingCacheTTL),
		logger:   logger.With().Str("component", "analyzer").Logger(),
	}
}

// Register installs the primary analyzer for a language, with a keyword
// fallback and a fresh circuit breaker. Not safe to call after the
// service is in use.
func (s *Service) Register(language string, primary ContentAnalyzer) {
	s.primary[language] = primary
	s.fallback[language] = NewKeywordAnalyzer(language)
	s.breakers[language] = gobreaker.NewCircuitBreaker[*model.Analysis](gobreaker.Settings{
		Name:    "analyzer-" + language,
		Timeout: s.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(language, to.String())
			s.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("analyzer breaker state change")
		},
	})
}

// Languages returns the registered language codes.
func (s *Service) Languages() []string {
	langs := make([]string, 0, len(s.primary))
	for lang := range s.primary {
		langs = append(langs, lang)
	}
	return langs
}

// Analyze runs the language's primary analyzer under breaker and
// timeout protection. On failure it degrades to the keyword fallback.
// Results are cached by content ID.
func (s *Service) Analyze(ctx context.Context, contentID, language, text string) (*model.Analysis, error) {
	primary, ok := s.primary[language]
	if !ok {
		metrics.AnalysisRequests.WithLabelValues(language, "error").Inc()
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}

	if cached, ok := s.cache.get(contentID); ok {
		metrics.RecordCacheLookup("analysis", true)
		return cached, nil
	}
	metrics.RecordCacheLookup("analysis", false)

	start := time.Now()
	analysis, err := s.breakers[language].Execute(func() (*model.Analysis, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		return analyzeWithDeadline(callCtx, primary, contentID, text)
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("content_id", contentID).
			Str("language", language).
			Msg("primary analyzer unavailable, using keyword fallback")

		analysis, err = s.fallback[language].Analyze(ctx, contentID, text)
		if err != nil {
			metrics.AnalysisRequests.WithLabelValues(language, "error").Inc()
			metrics.AnalysisDuration.WithLabelValues(language).Observe(time.Since(start).Seconds())
			return nil, fmt.Errorf("fallback analysis: %w", err)
		}
		analysis.LowConfidence = true
		metrics.AnalysisRequests.WithLabelValues(language, "fallback").Inc()
		metrics.AnalysisDuration.WithLabelValues(language).Observe(time.Since(start).Seconds())
		// Degraded results are not cached so a recovered primary can
		// replace them on the next request.
		return analysis, nil
	}

	metrics.AnalysisRequests.WithLabelValues(language, "primary").Inc()
	metrics.AnalysisDuration.WithLabelValues(language).Observe(time.Since(start).Seconds())
	s.cache.add(contentID, analysis)
	return analysis, nil
}

// analyzeWithDeadline runs the analyzer in a goroutine so a stuck
// implementation cannot outlive the context deadline.
func analyzeWithDeadline(ctx context.Context, a ContentAnalyzer, contentID, text string) (*model.Analysis, error) {
	type result struct {
		analysis *model.Analysis
		err      error
	}

	done := make(chan result, 1)
	go func() {
		analysis, err := a.Analyze(ctx, contentID, text)
		done <- result{analysis, err}
	}()

	select {
	case r := <-done:
		return r.analysis, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BreakerState reports the breaker state for a language, for health
// endpoints and metrics.
func (s *Service) BreakerState(language string) (string, bool) {
	cb, ok := s.breakers[language]
	if !ok {
		return "", false
	}
	return cb.State().String(), true
}

// CacheStats exposes hit/miss counters for observability.
func (s *Service) CacheStats() (hits, misses int64) {
	return s.cache.stats()
}
