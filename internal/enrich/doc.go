// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

// Package enrich owns the popularity score cache and its resolution
// pipeline. The cache maps stable cast identity to a previously resolved
// popularity score and tracks which identities are currently being
// resolved, so that:
//
//   - a key is looked up at most once concurrently, across overlapping
//     Resolve calls (in-flight dedup);
//   - a key is never re-looked-up once resolved in-process (idempotence);
//   - lookups run with bounded concurrency: keys are partitioned into
//     fixed-size batches, the batch runs concurrently, batches run one
//     after another.
//
// A failed lookup is recorded with score 0 rather than retried, so a
// flaky upstream never promotes a cast member nor wedges a key in-flight
// forever. The optional badger-backed Store persists scores across
// restarts with separate TTLs for successes and failures; an expired
// failure entry means the key is retried on the next run.
package enrich
