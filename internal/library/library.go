// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

// Package library is the in-memory record source behind the ranking
// pipeline: a mutable collection of media items with a filter over it.
// Mutations notify the registered Notifier so the stabilizer can react;
// the library itself knows nothing about ranking.
package library

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dbeaumont-media/marquee/internal/models"
)

// Filter restricts which items the filtered view exposes. Zero-value
// fields are inactive.
type Filter struct {
	// AddedAfter keeps items added strictly after this time.
	AddedAfter time.Time `json:"added_after,omitempty"`

	// AddedBefore keeps items added strictly before this time.
	AddedBefore time.Time `json:"added_before,omitempty"`

	// UnwatchedOnly keeps only unwatched items.
	UnwatchedOnly bool `json:"unwatched_only,omitempty"`
}

// Matches reports whether an item passes the filter.
func (f Filter) Matches(item models.MediaItem) bool {
	if !f.AddedAfter.IsZero() && !item.AddedAt.After(f.AddedAfter) {
		return false
	}
	if !f.AddedBefore.IsZero() && !item.AddedAt.Before(f.AddedBefore) {
		return false
	}
	if f.UnwatchedOnly && item.Watched {
		return false
	}
	return true
}

// Notifier receives collection change events. The ranking stabilizer is
// the intended implementation; a nil notifier silently ignores events.
type Notifier interface {
	// FilterChanged fires when the active filter is replaced.
	FilterChanged()

	// ItemCountChanged fires when items enter or leave the collection.
	ItemCountChanged()
}

// Library is a thread-safe in-memory media collection with one active
// filter. Items is the Source consumed by the ranking stabilizer.
type Library struct {
	mu       sync.RWMutex
	items    map[string]models.MediaItem
	filter   Filter
	notifier Notifier
}

// New creates an empty library.
func New() *Library {
	return &Library{items: make(map[string]models.MediaItem)}
}

// SetNotifier registers the change notifier. Call before mutations start.
func (l *Library) SetNotifier(n Notifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notifier = n
}

// Add inserts or replaces an item and fires ItemCountChanged.
// Items without an ID are ignored.
func (l *Library) Add(item models.MediaItem) {
	if strings.TrimSpace(item.ID) == "" {
		return
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}

	l.mu.Lock()
	l.items[item.ID] = item
	n := l.notifier
	l.mu.Unlock()

	if n != nil {
		n.ItemCountChanged()
	}
}

// Remove deletes an item and fires ItemCountChanged when it existed.
func (l *Library) Remove(id string) {
	l.mu.Lock()
	_, existed := l.items[id]
	delete(l.items, id)
	n := l.notifier
	l.mu.Unlock()

	if existed && n != nil {
		n.ItemCountChanged()
	}
}

// SetWatched marks an item watched or unwatched. Under an unwatched-only
// filter this changes the filtered item set, so it fires ItemCountChanged.
// Returns false when the item does not exist.
func (l *Library) SetWatched(id string, watched bool) bool {
	l.mu.Lock()
	item, ok := l.items[id]
	changed := ok && item.Watched != watched
	if changed {
		item.Watched = watched
		l.items[id] = item
	}
	n := l.notifier
	l.mu.Unlock()

	if changed && n != nil {
		n.ItemCountChanged()
	}
	return ok
}

// SetFilter replaces the active filter and fires FilterChanged.
func (l *Library) SetFilter(f Filter) {
	l.mu.Lock()
	l.filter = f
	n := l.notifier
	l.mu.Unlock()

	if n != nil {
		n.FilterChanged()
	}
}

// Filter returns the active filter.
func (l *Library) Filter() Filter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filter
}

// Items returns the filtered view of the collection, ordered by item ID
// for determinism. Implements ranking.Source.
func (l *Library) Items() []models.MediaItem {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.MediaItem, 0, len(l.items))
	for _, item := range l.items {
		if l.filter.Matches(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the unfiltered item count.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
