// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds the HTTP middleware knobs.
type RouterConfig struct {
	// RateLimitReqs per RateLimitWindow per client IP on API routes.
	RateLimitReqs   int
	RateLimitWindow time.Duration

	CORSOrigins []string
}

// NewRouter assembles the service's routes and middleware.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.RateLimitReqs <= 0 {
		cfg.RateLimitReqs = 100
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Global middleware, applied to every route.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogging(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints get a permissive limit so monitors can poll freely.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(prometheusMetrics)

		r.Post("/datasets", h.UploadDataset)
		r.Post("/datasets/csv", h.UploadDatasetCSV)

		r.Post("/train", h.SubmitTraining)
		r.Get("/train/{modelID}", h.TrainingStatus)

		r.Get("/recommendations/{modelID}", h.GetRecommendations)
		r.Get("/recommendations/{modelID}/emails", h.GetEmailRecommendations)
		r.Post("/recommendations/{modelID}/dispatch", h.DispatchRewards)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
