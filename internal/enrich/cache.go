// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package enrich

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dbeaumont-media/marquee/internal/logging"
	"github.com/dbeaumont-media/marquee/internal/metrics"
	"github.com/dbeaumont-media/marquee/internal/models"
)

// DefaultBatchSize is the lookup concurrency bound used when no batch
// size is configured.
const DefaultBatchSize = 6

// LookupFunc resolves the popularity score for one cast member. It must
// be safe to call concurrently up to the configured batch size. A returned
// error marks the key as failed (score 0) for the rest of the session.
type LookupFunc func(ctx context.Context, id models.PersonID) (float64, error)

// PopularityStore is the optional persistent layer beneath the in-memory
// cache. Implementations apply their own expiry policy; an entry that has
// expired is simply absent from Get.
type PopularityStore interface {
	Get(id models.PersonID) (models.PopularityRecord, bool, error)
	Put(rec models.PopularityRecord) error
}

// Cache is the enrichment cache: resolved popularity scores plus the set
// of keys currently being resolved. The score map only grows within a
// process lifetime; eviction across restarts is the persistent store's
// concern.
//
// All methods are safe for concurrent use. Overlapping Resolve calls
// observe each other through the in-flight set, so no key is ever looked
// up twice concurrently.
type Cache struct {
	mu       sync.RWMutex
	scores   map[models.PersonID]models.PopularityRecord
	inFlight map[models.PersonID]struct{}

	batchSize int
	store     PopularityStore // may be nil
}

// NewCache creates an enrichment cache. batchSize bounds lookup
// concurrency; values < 1 fall back to DefaultBatchSize. store may be nil
// to run memory-only.
func NewCache(batchSize int, store PopularityStore) *Cache {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Cache{
		scores:    make(map[models.PersonID]models.PopularityRecord),
		inFlight:  make(map[models.PersonID]struct{}),
		batchSize: batchSize,
		store:     store,
	}
}

// Score returns the cached popularity score for a cast member. The second
// return is false when the key has not resolved yet; callers rank such
// entries as score 0.
func (c *Cache) Score(id models.PersonID) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.scores[id]
	return rec.Score, ok
}

// Scores returns the currently cached scores for the given keys.
// Unresolved keys are absent from the result.
func (c *Cache) Scores(ids []models.PersonID) map[models.PersonID]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[models.PersonID]float64, len(ids))
	for _, id := range ids {
		if rec, ok := c.scores[id]; ok {
			out[id] = rec.Score
		}
	}
	return out
}

// Len returns the number of cached scores.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scores)
}

// Resolve resolves popularity for the given keys through the lookup.
//
// The input is deduplicated; keys already cached or already in-flight from
// an overlapping call are skipped, so repeated Resolve calls for cached
// keys perform zero lookups. The remaining keys are first checked against
// the persistent store, then partitioned into batches: within a batch all
// lookups run concurrently, batches execute sequentially, capping
// outstanding requests at the batch size.
//
// Resolve blocks until every claimed key has terminated (success, failure,
// or released on context cancellation). It never returns an error: a
// failed lookup is recorded as score 0 and the key leaves the in-flight
// set regardless.
func (c *Cache) Resolve(ctx context.Context, ids []models.PersonID, lookup LookupFunc) {
	pending := c.claim(ids)
	if len(pending) == 0 {
		return
	}

	pending = c.fillFromStore(pending)

	for start := 0; start < len(pending); start += c.batchSize {
		end := start + c.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		c.resolveBatch(ctx, pending[start:end], lookup)
	}
}

// claim deduplicates the input, filters out cached and in-flight keys,
// and marks the remainder in-flight. The returned keys are owned by this
// call until completed or released.
func (c *Cache) claim(ids []models.PersonID) []models.PersonID {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[models.PersonID]struct{}, len(ids))
	pending := make([]models.PersonID, 0, len(ids))

	for _, id := range ids {
		if !id.Valid() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if _, ok := c.scores[id]; ok {
			metrics.CacheHits.Inc()
			continue
		}
		if _, ok := c.inFlight[id]; ok {
			continue
		}

		metrics.CacheMisses.Inc()
		c.inFlight[id] = struct{}{}
		pending = append(pending, id)
	}

	metrics.InFlightLookups.Set(float64(len(c.inFlight)))
	return pending
}

// fillFromStore completes claimed keys that the persistent store still
// holds, returning the keys that actually need an upstream lookup.
func (c *Cache) fillFromStore(pending []models.PersonID) []models.PersonID {
	if c.store == nil {
		return pending
	}

	remaining := pending[:0]
	for _, id := range pending {
		rec, ok, err := c.store.Get(id)
		if err != nil {
			logging.Warn().Err(err).Int64("person_id", int64(id)).Msg("popularity store read failed")
			remaining = append(remaining, id)
			continue
		}
		if !ok {
			remaining = append(remaining, id)
			continue
		}

		metrics.StoreHits.Inc()
		c.complete(rec, false)
	}
	return remaining
}

// resolveBatch runs one batch of lookups concurrently and merges every
// result before returning.
func (c *Cache) resolveBatch(ctx context.Context, batch []models.PersonID, lookup LookupFunc) {
	metrics.LookupBatches.Inc()

	type result struct {
		id    models.PersonID
		score float64
		err   error
	}

	results := make(chan result, len(batch))
	for _, id := range batch {
		go func(id models.PersonID) {
			started := time.Now()
			score, err := lookup(ctx, id)
			metrics.LookupDuration.Observe(time.Since(started).Seconds())
			results <- result{id: id, score: score, err: err}
		}(id)
	}

	for range batch {
		res := <-results
		switch {
		case res.err == nil:
			metrics.LookupsTotal.WithLabelValues("success").Inc()
			c.complete(models.PopularityRecord{
				PersonID:   res.id,
				Score:      res.score,
				ResolvedAt: time.Now().UTC(),
			}, true)
		case errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded):
			// Shutdown or timeout of the whole cycle: release the key so a
			// later session can retry, without caching a failure.
			c.release(res.id)
		default:
			metrics.LookupsTotal.WithLabelValues("failure").Inc()
			logging.Debug().Err(res.err).Int64("person_id", int64(res.id)).Msg("popularity lookup failed")
			c.complete(models.PopularityRecord{
				PersonID:   res.id,
				Score:      0,
				Failed:     true,
				ResolvedAt: time.Now().UTC(),
			}, true)
		}
	}
}

// complete records a resolved score and clears the key's in-flight status.
// persist controls whether the record is also written through to the
// store (records read back from the store are not re-written).
func (c *Cache) complete(rec models.PopularityRecord, persist bool) {
	c.mu.Lock()
	c.scores[rec.PersonID] = rec
	delete(c.inFlight, rec.PersonID)
	metrics.CacheSize.Set(float64(len(c.scores)))
	metrics.InFlightLookups.Set(float64(len(c.inFlight)))
	c.mu.Unlock()

	if persist && c.store != nil {
		if err := c.store.Put(rec); err != nil {
			logging.Warn().Err(err).Int64("person_id", int64(rec.PersonID)).Msg("popularity store write failed")
		}
	}
}

// release clears a key's in-flight status without recording a score.
func (c *Cache) release(id models.PersonID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
	metrics.InFlightLookups.Set(float64(len(c.inFlight)))
}
