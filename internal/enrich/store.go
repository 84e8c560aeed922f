// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package enrich

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/dbeaumont-media/marquee/internal/logging"
	"github.com/dbeaumont-media/marquee/internal/models"
)

// popularityKeyPrefix namespaces popularity records in badger.
const popularityKeyPrefix = "pop:"

// Store is a badger-backed persistent popularity store. Successful
// lookups persist for the success TTL; failures persist for the (shorter)
// failure TTL, so a cast member whose lookup failed is retried on the
// first run after the failure entry expires rather than being failed
// forever or hammered on every start.
type Store struct {
	db         *badger.DB
	ttl        time.Duration
	failureTTL time.Duration
}

// OpenStore opens (or creates) the badger database at path.
func OpenStore(path string, ttl, failureTTL time.Duration) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil) // badger's own logger is too chatty; errors surface via API returns

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open popularity store at %s: %w", path, err)
	}

	return &Store{db: db, ttl: ttl, failureTTL: failureTTL}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// storeKey builds the badger key for a cast member.
func storeKey(id models.PersonID) []byte {
	return []byte(popularityKeyPrefix + strconv.FormatInt(int64(id), 10))
}

// Get returns the stored record for a cast member. The boolean is false
// when the key is absent or its TTL has expired.
func (s *Store) Get(id models.PersonID) (models.PopularityRecord, bool, error) {
	var rec models.PopularityRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.PopularityRecord{}, false, nil
	}
	if err != nil {
		return models.PopularityRecord{}, false, fmt.Errorf("get popularity record: %w", err)
	}

	return rec, true, nil
}

// Put stores a record with the TTL matching its outcome.
func (s *Store) Put(rec models.PopularityRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal popularity record: %w", err)
	}

	ttl := s.ttl
	if rec.Failed {
		ttl = s.failureTTL
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(storeKey(rec.PersonID), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("put popularity record: %w", err)
	}
	return nil
}

// RunGC runs badger's value log garbage collector on the given interval
// until the context is canceled. Intended to run as a supervised service.
func (s *Store) RunGC(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// One pass per tick; ErrNoRewrite just means nothing to collect.
			if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("popularity store gc failed")
			}
		}
	}
}
