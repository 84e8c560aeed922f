// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package api

import (
	"time"

	"github.com/dbeaumont-media/marquee/internal/models"
)

// AddItemRequest is the body for POST /api/v1/library/items.
type AddItemRequest struct {
	ID      string              `json:"id" validate:"required,max=128"`
	Title   string              `json:"title" validate:"required,max=512"`
	AddedAt time.Time           `json:"added_at"`
	Watched bool                `json:"watched"`
	Cast    []CastCreditRequest `json:"cast" validate:"dive"`
}

// CastCreditRequest is one cast credit in an AddItemRequest. Credits with
// a non-positive person ID or a blank name are accepted here and dropped
// at aggregation time, matching the malformed-record policy.
type CastCreditRequest struct {
	PersonID int64  `json:"person_id"`
	Name     string `json:"name" validate:"max=256"`
}

// toModel converts the request into a domain item.
func (r *AddItemRequest) toModel() models.MediaItem {
	cast := make([]models.CastCredit, len(r.Cast))
	for i, c := range r.Cast {
		cast[i] = models.CastCredit{PersonID: models.PersonID(c.PersonID), Name: c.Name}
	}
	return models.MediaItem{
		ID:      r.ID,
		Title:   r.Title,
		AddedAt: r.AddedAt,
		Watched: r.Watched,
		Cast:    cast,
	}
}

// SetWatchedRequest is the body for POST /api/v1/library/items/{id}/watched.
type SetWatchedRequest struct {
	Watched bool `json:"watched"`
}

// SetFilterRequest is the body for PUT /api/v1/ranking/filter.
// Zero-value fields deactivate the corresponding predicate.
type SetFilterRequest struct {
	AddedAfter    time.Time `json:"added_after"`
	AddedBefore   time.Time `json:"added_before"`
	UnwatchedOnly bool      `json:"unwatched_only"`
}

// SetWindowRequest is the body for PUT /api/v1/ranking/window.
type SetWindowRequest struct {
	Window int `json:"window" validate:"required,min=1,max=500"`
}
