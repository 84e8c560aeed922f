// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dbeaumont-media/marquee/internal/config"
)

// NewRouter assembles the HTTP surface: health and metrics at the root,
// the versioned API under /api/v1, and the ranking stream websocket.
func NewRouter(cfg *config.ServerConfig, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(RequestID())
	r.Use(chimiddleware.Recoverer)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequestLogger())
		if cfg.RateLimitRequests > 0 {
			r.Use(httprate.Limit(cfg.RateLimitRequests, cfg.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP)))
		}

		r.Get("/ranking", h.Ranking)
		r.Put("/ranking/filter", h.SetFilter)
		r.Put("/ranking/window", h.SetWindow)

		r.Post("/library/items", h.AddItem)
		r.Delete("/library/items/{id}", h.RemoveItem)
		r.Post("/library/items/{id}/watched", h.SetWatched)

		r.Get("/ws", h.WebSocket)
	})

	return r
}
