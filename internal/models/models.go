// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package models

import (
	"strings"
	"time"
)

// PersonID is the stable identity of a cast member. It is the numeric
// identifier assigned by the upstream metadata service and is invariant
// under display-name changes. A PersonID <= 0 is invalid and is dropped
// during aggregation.
type PersonID int64

// Valid reports whether the ID is a usable stable identifier.
func (id PersonID) Valid() bool {
	return id > 0
}

// CastCredit is one (person, name) appearance extracted from a library item.
type CastCredit struct {
	PersonID PersonID `json:"person_id"`
	Name     string   `json:"name"`
}

// Valid reports whether the credit carries a stable ID and a non-blank name.
func (c CastCredit) Valid() bool {
	return c.PersonID.Valid() && strings.TrimSpace(c.Name) != ""
}

// MediaItem is a single record in the library collection: a movie or
// episode with the cast credits it contributes to aggregation.
type MediaItem struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	AddedAt time.Time    `json:"added_at"`
	Watched bool         `json:"watched"`
	Cast    []CastCredit `json:"cast"`
}

// CastEntry is one row of the aggregated count table: a cast member,
// the canonical display name (first one seen for the ID), and how many
// items in the current filtered view they appear in.
//
// Entries are produced fresh on every aggregation pass and never mutated
// in place; a new slice replaces the old one.
type CastEntry struct {
	PersonID PersonID `json:"person_id"`
	Name     string   `json:"name"`
	Count    int      `json:"count"`
}

// RankedEntry is a CastEntry joined with the popularity score that was
// available when the displayed order was computed. Score is 0 for cast
// members whose lookup has not resolved (or failed).
type RankedEntry struct {
	CastEntry
	Score float64 `json:"score"`
}

// PopularityRecord is a resolved popularity score for one cast member.
// Failed lookups are recorded with Score 0 and Failed true so the person
// is ranked as least popular rather than retried within the session.
type PopularityRecord struct {
	PersonID   PersonID  `json:"person_id"`
	Score      float64   `json:"score"`
	Failed     bool      `json:"failed"`
	ResolvedAt time.Time `json:"resolved_at"`
}
