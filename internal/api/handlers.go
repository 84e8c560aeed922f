// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/dbeaumont-media/marquee/internal/library"
	"github.com/dbeaumont-media/marquee/internal/logging"
	"github.com/dbeaumont-media/marquee/internal/ranking"
	"github.com/dbeaumont-media/marquee/internal/validation"
	"github.com/dbeaumont-media/marquee/internal/websocket"
)

// Handler serves the ranking and library endpoints.
type Handler struct {
	lib     *library.Library
	stab    *ranking.Stabilizer
	hub     *websocket.Hub
	origins []string
}

// NewHandler builds the endpoint handler. origins is the allowed
// websocket origin list; empty means same-origin only.
func NewHandler(lib *library.Library, stab *ranking.Stabilizer, hub *websocket.Hub, origins []string) *Handler {
	return &Handler{lib: lib, stab: stab, hub: hub, origins: origins}
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ranking returns the current published snapshot.
func (h *Handler) Ranking(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stab.Current())
}

// AddItem inserts or replaces a library item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.lib.Add(req.toModel())
	respondJSON(w, http.StatusAccepted, map[string]string{"id": req.ID})
}

// RemoveItem deletes a library item. Removing an absent item succeeds.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}
	h.lib.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// SetWatched flips an item's watched flag.
func (h *Handler) SetWatched(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}
	var req SetWatchedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.lib.SetWatched(id, req.Watched) {
		respondError(w, http.StatusNotFound, "item_not_found", "no library item with id "+id)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"watched": req.Watched})
}

// SetFilter replaces the active library filter.
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req SetFilterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.AddedAfter.IsZero() && !req.AddedBefore.IsZero() && !req.AddedAfter.Before(req.AddedBefore) {
		respondError(w, http.StatusBadRequest, "invalid_filter", "added_after must be before added_before")
		return
	}
	h.lib.SetFilter(library.Filter{
		AddedAfter:    req.AddedAfter,
		AddedBefore:   req.AddedBefore,
		UnwatchedOnly: req.UnwatchedOnly,
	})
	respondJSON(w, http.StatusOK, h.lib.Filter())
}

// SetWindow resizes the visible enrichment window.
func (h *Handler) SetWindow(w http.ResponseWriter, r *http.Request) {
	var req SetWindowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.stab.SetWindow(req.Window)
	respondJSON(w, http.StatusOK, map[string]int{"window": req.Window})
}

// WebSocket upgrades the connection and streams ranking snapshots.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeClient(h.hub, w, r, h.checkOrigin)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.origins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// decodeBody parses and validates a JSON request body, writing the
// error response itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body: "+err.Error())
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		var sErr *validation.StructError
		if errors.As(err, &sErr) {
			respondError(w, http.StatusBadRequest, "validation_failed", sErr.Error())
			return false
		}
		logging.Error().Err(err).Msg("request validation failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "validation failed")
		return false
	}
	return true
}
