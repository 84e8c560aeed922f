// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package library

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/dbeaumont-media/marquee/internal/models"
)

// countingNotifier counts change events for assertions.
type countingNotifier struct {
	filterChanges atomic.Int64
	countChanges  atomic.Int64
}

func (n *countingNotifier) FilterChanged()    { n.filterChanges.Add(1) }
func (n *countingNotifier) ItemCountChanged() { n.countChanges.Add(1) }

func libItem(id string, addedAt time.Time, watched bool) models.MediaItem {
	return models.MediaItem{
		ID:      id,
		Title:   id,
		AddedAt: addedAt,
		Watched: watched,
		Cast:    []models.CastCredit{{PersonID: 1, Name: "Someone"}},
	}
}

func TestAddNotifiesItemCountChange(t *testing.T) {
	lib := New()
	notifier := &countingNotifier{}
	lib.SetNotifier(notifier)

	lib.Add(libItem("a", time.Now(), false))
	lib.Add(libItem("b", time.Now(), false))

	if got := notifier.countChanges.Load(); got != 2 {
		t.Errorf("count changes = %d, want 2", got)
	}
	if lib.Len() != 2 {
		t.Errorf("Len = %d, want 2", lib.Len())
	}
}

func TestAddIgnoresBlankID(t *testing.T) {
	lib := New()
	notifier := &countingNotifier{}
	lib.SetNotifier(notifier)

	lib.Add(models.MediaItem{ID: "  "})

	if lib.Len() != 0 {
		t.Errorf("Len = %d, want 0", lib.Len())
	}
	if notifier.countChanges.Load() != 0 {
		t.Error("blank-ID add fired a notification")
	}
}

func TestRemoveNotifiesOnlyWhenPresent(t *testing.T) {
	lib := New()
	notifier := &countingNotifier{}
	lib.SetNotifier(notifier)

	lib.Add(libItem("a", time.Now(), false))
	before := notifier.countChanges.Load()

	lib.Remove("missing")
	if got := notifier.countChanges.Load(); got != before {
		t.Error("removing a missing item fired a notification")
	}

	lib.Remove("a")
	if got := notifier.countChanges.Load(); got != before+1 {
		t.Errorf("count changes = %d, want %d", got, before+1)
	}
}

func TestSetFilterNotifiesFilterChange(t *testing.T) {
	lib := New()
	notifier := &countingNotifier{}
	lib.SetNotifier(notifier)

	lib.SetFilter(Filter{UnwatchedOnly: true})

	if got := notifier.filterChanges.Load(); got != 1 {
		t.Errorf("filter changes = %d, want 1", got)
	}
	if !lib.Filter().UnwatchedOnly {
		t.Error("filter not applied")
	}
}

func TestItemsAppliesFilter(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	lib := New()
	lib.Add(libItem("old", now.Add(-48*time.Hour), false))
	lib.Add(libItem("new-watched", now, true))
	lib.Add(libItem("new-unwatched", now, false))

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string
	}{
		{
			name:    "no filter returns everything",
			filter:  Filter{},
			wantIDs: []string{"new-unwatched", "new-watched", "old"},
		},
		{
			name:    "unwatched only",
			filter:  Filter{UnwatchedOnly: true},
			wantIDs: []string{"new-unwatched", "old"},
		},
		{
			name:    "added after cutoff",
			filter:  Filter{AddedAfter: now.Add(-time.Hour)},
			wantIDs: []string{"new-unwatched", "new-watched"},
		},
		{
			name:    "combined",
			filter:  Filter{AddedAfter: now.Add(-time.Hour), UnwatchedOnly: true},
			wantIDs: []string{"new-unwatched"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib.SetFilter(tt.filter)
			items := lib.Items()

			got := make([]string, len(items))
			for i, item := range items {
				got[i] = item.ID
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("Items = %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("Items = %v, want %v", got, tt.wantIDs)
					break
				}
			}
		})
	}
}

func TestSetWatchedNotifiesOnTransition(t *testing.T) {
	lib := New()
	notifier := &countingNotifier{}
	lib.SetNotifier(notifier)

	lib.Add(libItem("a", time.Now(), false))
	before := notifier.countChanges.Load()

	if !lib.SetWatched("a", true) {
		t.Fatal("SetWatched returned false for existing item")
	}
	if got := notifier.countChanges.Load(); got != before+1 {
		t.Errorf("count changes = %d, want %d", got, before+1)
	}

	// No-op transition fires nothing.
	lib.SetWatched("a", true)
	if got := notifier.countChanges.Load(); got != before+1 {
		t.Error("no-op SetWatched fired a notification")
	}

	if lib.SetWatched("missing", true) {
		t.Error("SetWatched returned true for missing item")
	}
}
