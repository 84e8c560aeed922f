// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/dbeaumont-media/marquee/internal/logging"
)

// APIError is the error payload returned by every failing endpoint.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorResponse wraps APIError for the response envelope.
type errorResponse struct {
	Error APIError `json:"error"`
}

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

// respondError writes a structured error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: APIError{Code: code, Message: message}})
}
