// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package ranking

import (
	"sort"
	"strings"

	"github.com/dbeaumont-media/marquee/internal/models"
)

// Rank joins baseline entries with the given popularity scores and sorts
// them into display order: count descending, then score descending, then
// name ascending (case-insensitive). Entries with no resolved score rank
// as score 0, so a failed or pending lookup never promotes a cast member.
//
// Name ties fall back to the raw name and then the PersonID, making the
// ordering a strict total order over distinct entries.
func Rank(baseline []models.CastEntry, scores map[models.PersonID]float64) []models.RankedEntry {
	ranked := make([]models.RankedEntry, len(baseline))
	for i, entry := range baseline {
		ranked[i] = models.RankedEntry{
			CastEntry: entry,
			Score:     scores[entry.PersonID],
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.PersonID < b.PersonID
	})

	return ranked
}

// unranked wraps baseline entries as RankedEntry without reordering them.
// Used for the seeded snapshot, which must show the baseline order frozen
// until enrichment settles.
func unranked(baseline []models.CastEntry) []models.RankedEntry {
	ranked := make([]models.RankedEntry, len(baseline))
	for i, entry := range baseline {
		ranked[i] = models.RankedEntry{CastEntry: entry}
	}
	return ranked
}
