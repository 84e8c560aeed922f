// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

// Package api provides the HTTP surface over the ranking core using the
// Chi router: the current ranking snapshot, library mutations, filter and
// window triggers, a WebSocket push of every applied ordering, health and
// Prometheus endpoints.
//
// The API is a thin driver: every handler translates a request into a
// library mutation or a stabilizer trigger and reads back published
// snapshots. No ranking logic lives here.
package api
