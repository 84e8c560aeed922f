// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

// Package models defines the domain types shared across Marquee:
// library items and their cast credits, aggregated cast entries, and
// resolved popularity records.
//
// The types here are plain data structures. Aggregation logic lives in
// internal/aggregate, popularity resolution in internal/enrich, and
// ordering orchestration in internal/ranking.
package models
