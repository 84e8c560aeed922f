// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

// Package ranking orchestrates when the displayed cast ordering is
// recomputed and which asynchronous enrichment results are allowed to
// update it.
//
// The Stabilizer is a single-owner loop: all mutable ordering state (the
// current generation, the published snapshot, the debounce timer) lives
// on one goroutine. Each trigger mints a strictly increasing generation
// token, shows the synchronous baseline order immediately, and starts a
// two-phase enrichment pass (visible window first, then the full entity
// set). A completed pass is applied only if its generation is still
// current; results from superseded generations are discarded on arrival.
// There is no task cancellation: discard-on-arrival is the sole staleness
// mechanism, which keeps the enrichment cache monotone and corruption-free.
//
// Item-count triggers are debounced: a quiet period must elapse before a
// generation is minted, and further item-count triggers inside the window
// reset the timer. Filter and window triggers are explicit user actions
// and mint immediately.
package ranking
