// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

// Package aggregate turns a filtered sequence of library items into a
// count table keyed by stable cast identity. It is the pure, synchronous
// half of the ranking pipeline: no I/O, no shared state, deterministic
// output for a given input.
package aggregate

import (
	"sort"
	"strings"

	"github.com/dbeaumont-media/marquee/internal/models"
)

// CreditFunc extracts zero or more cast credits from a library item.
// The extractor decides which people an item contributes to the count
// table (e.g. every credited actor of a movie).
type CreditFunc func(models.MediaItem) []models.CastCredit

// ByCast is the default extractor: an item contributes each of its cast
// credits.
func ByCast(item models.MediaItem) []models.CastCredit {
	return item.Cast
}

// Cast folds the given items into a count table of cast entries in
// baseline order: count descending, then name ascending (case-insensitive).
//
// For each item, each valid credit increments the count for its PersonID.
// The first name seen for an ID becomes the canonical label; later,
// differing names for the same ID are ignored so the label is stable even
// when upstream display names fluctuate. Credits with a non-positive ID or
// a blank name are dropped silently. Empty input yields an empty slice.
func Cast(items []models.MediaItem, extract CreditFunc) []models.CastEntry {
	if extract == nil {
		extract = ByCast
	}

	counts := make(map[models.PersonID]int)
	names := make(map[models.PersonID]string)

	for i := range items {
		for _, credit := range extract(items[i]) {
			if !credit.Valid() {
				continue
			}
			counts[credit.PersonID]++
			if _, seen := names[credit.PersonID]; !seen {
				names[credit.PersonID] = strings.TrimSpace(credit.Name)
			}
		}
	}

	entries := make([]models.CastEntry, 0, len(counts))
	for id, count := range counts {
		entries = append(entries, models.CastEntry{
			PersonID: id,
			Name:     names[id],
			Count:    count,
		})
	}

	SortBaseline(entries)
	return entries
}

// SortBaseline orders entries by count descending, then name ascending
// using case-insensitive comparison. The ordering is a strict total order:
// name ties fall back to the raw name, then to the PersonID, so two
// distinct entries never compare equal.
func SortBaseline(entries []models.CastEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return lessByName(a, b)
	})
}

// lessByName compares two entries by case-insensitive name, falling back
// to raw name and then PersonID for a deterministic total order.
func lessByName(a, b models.CastEntry) bool {
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.PersonID < b.PersonID
}

// Keys returns the PersonIDs of the given entries in order.
func Keys(entries []models.CastEntry) []models.PersonID {
	keys := make([]models.PersonID, len(entries))
	for i := range entries {
		keys[i] = entries[i].PersonID
	}
	return keys
}
