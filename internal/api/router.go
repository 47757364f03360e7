// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quillfeed/quillfeed/internal/config"
)

// NewRouter wires all routes and global middleware.
func NewRouter(cfg config.ServerConfig, handler *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg))
	r.Use(Instrument())
	if cfg.Timeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.Timeout))
	}

	r.Get("/healthz", handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(cfg))

		r.Post("/content", handler.IngestContent)
		r.Post("/feedback", handler.SubmitFeedback)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/recommendations", handler.Recommendations)
			r.Get("/discoveries", handler.Discoveries)
			r.Get("/evolution", handler.Evolution)

			r.Get("/preferences", handler.Transparency)
			r.Put("/preferences/{topic}", handler.Override)
			r.Delete("/preferences/{topic}", handler.ClearOverride)
		})
	})

	return r
}
