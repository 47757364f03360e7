// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package main is the entry point for the quillfeed server.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load via Koanf v2 (defaults, file, env)
//  2. Logging: zerolog, json or console format
//  3. Profile store: Badger-backed profiles and feedback events
//  4. Content catalog and analyzer registry
//  5. Feedback pipeline: Watermill shard workers folding events
//  6. Recommendation, discovery, and evolution engines
//  7. HTTP server: Chi REST API with Prometheus metrics
//
// All long-lived services run under a suture v4 supervision tree and
// shut down gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quillfeed/quillfeed/internal/analyzer"
	"github.com/quillfeed/quillfeed/internal/api"
	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/content"
	"github.com/quillfeed/quillfeed/internal/discovery"
	"github.com/quillfeed/quillfeed/internal/evolution"
	"github.com/quillfeed/quillfeed/internal/feedback"
	"github.com/quillfeed/quillfeed/internal/logging"
	"github.com/quillfeed/quillfeed/internal/recommend"
	"github.com/quillfeed/quillfeed/internal/scoring"
	"github.com/quillfeed/quillfeed/internal/service"
	"github.com/quillfeed/quillfeed/internal/store"
	"github.com/quillfeed/quillfeed/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	logger.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Msg("starting quillfeed")

	st, err := store.Open(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("store close failed")
		}
	}()

	catalog := content.NewMemoryCatalog()
	resilient := content.NewResilientCatalog(catalog, cfg.Content, logger)

	an := analyzer.NewService(cfg.Analyzer, logger)
	an.Register("en", analyzer.NewKeywordAnalyzer("en"))
	an.Register("ja", analyzer.NewKeywordAnalyzer("ja"))

	proc := feedback.NewProcessor(cfg.Feedback, cfg.Discovery)
	pipeline := feedback.NewPipeline(cfg.Feedback, st, proc, logger)
	defer func() {
		if closeErr := pipeline.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("pipeline close failed")
		}
	}()

	scorer := scoring.New(cfg.Scoring)
	engine := recommend.NewEngine(cfg.Recommend, scorer, resilient, st, logger)
	disc := discovery.NewEngine(cfg.Discovery, scorer, resilient, st, logger)
	tracker := evolution.NewTracker(cfg.Evolution, st, logger)

	svc := service.New(st, catalog, resilient, an, pipeline, engine, disc, tracker, logger)
	handler := api.NewHandler(svc, an, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(cfg.Server, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddProcessingService(pipeline)
	tree.AddProcessingService(tracker)
	tree.AddProcessingService(store.NewMetricsPublisher(st, time.Minute, logger))
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("shutdown complete")
		return nil
	}
	return err
}
