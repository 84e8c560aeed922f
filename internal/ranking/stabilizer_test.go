// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package ranking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dbeaumont-media/marquee/internal/enrich"
	"github.com/dbeaumont-media/marquee/internal/models"
)

// swappableSource is a Source whose item set tests can replace, standing
// in for a filter change on the underlying collection.
type swappableSource struct {
	mu    sync.Mutex
	items []models.MediaItem
}

func (s *swappableSource) Items() []models.MediaItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MediaItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *swappableSource) swap(items []models.MediaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

func castItem(id string, credits ...models.CastCredit) models.MediaItem {
	return models.MediaItem{ID: id, Title: id, Cast: credits}
}

func cc(id int64, name string) models.CastCredit {
	return models.CastCredit{PersonID: models.PersonID(id), Name: name}
}

// harness wires a stabilizer with a capturing listener and runs its loop
// for the duration of the test.
type harness struct {
	stab  *Stabilizer
	snaps chan Snapshot
}

func newHarness(t *testing.T, source Source, lookup enrich.LookupFunc, cfg Config) *harness {
	t.Helper()

	cache := enrich.NewCache(enrich.DefaultBatchSize, nil)
	stab := NewStabilizer(source, cache, lookup, cfg)

	snaps := make(chan Snapshot, 64)
	stab.AddListener(func(snap Snapshot) {
		snaps <- snap
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = stab.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &harness{stab: stab, snaps: snaps}
}

// next waits for the next published snapshot.
func (h *harness) next(t *testing.T, timeout time.Duration) Snapshot {
	t.Helper()
	select {
	case snap := <-h.snaps:
		return snap
	case <-time.After(timeout):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

// none asserts no snapshot is published within the window.
func (h *harness) none(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case snap := <-h.snaps:
		t.Fatalf("unexpected snapshot published: gen=%d state=%s", snap.Generation, snap.State)
	case <-time.After(window):
	}
}

func orderIDs(snap Snapshot) []int64 {
	ids := make([]int64, len(snap.Entries))
	for i, e := range snap.Entries {
		ids[i] = int64(e.PersonID)
	}
	return ids
}

func equalIDs(a []int64, b ...int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// threeActorItems builds the reference scenario: A(id=1) in 3 items,
// B(id=2) in 3 items, C(id=3) in 1 item.
func threeActorItems() []models.MediaItem {
	return []models.MediaItem{
		castItem("m1", cc(1, "A"), cc(2, "B")),
		castItem("m2", cc(1, "A"), cc(2, "B")),
		castItem("m3", cc(1, "A"), cc(2, "B"), cc(3, "C")),
	}
}

func TestBaselineShownBeforeEnrichment(t *testing.T) {
	source := &swappableSource{items: threeActorItems()}

	block := make(chan struct{})
	lookup := func(ctx context.Context, id models.PersonID) (float64, error) {
		<-block
		return 0, nil
	}
	t.Cleanup(func() { close(block) })

	h := newHarness(t, source, lookup, Config{WindowSize: 10})
	h.stab.Trigger(TriggerInitialShow)

	snap := h.next(t, time.Second)
	if snap.State != StateSeeded {
		t.Fatalf("first snapshot state = %s, want seeded", snap.State)
	}
	// Baseline: count desc, then label. A and B tie at 3, "A" < "B".
	if got := orderIDs(snap); !equalIDs(got, 1, 2, 3) {
		t.Errorf("baseline order = %v, want [1 2 3]", got)
	}
	for _, e := range snap.Entries {
		if e.Score != 0 {
			t.Errorf("seeded entry %d has score %g, want 0", e.PersonID, e.Score)
		}
	}
}

func TestSettledOrderUsesPopularity(t *testing.T) {
	source := &swappableSource{items: threeActorItems()}

	scores := map[models.PersonID]float64{1: 5.0, 2: 9.0, 3: 1.0}
	lookup := func(ctx context.Context, id models.PersonID) (float64, error) {
		return scores[id], nil
	}

	h := newHarness(t, source, lookup, Config{WindowSize: 10})
	h.stab.Trigger(TriggerInitialShow)

	seeded := h.next(t, time.Second)
	if seeded.State != StateSeeded {
		t.Fatalf("first snapshot state = %s, want seeded", seeded.State)
	}

	settled := h.next(t, time.Second)
	if settled.State != StateSettled {
		t.Fatalf("second snapshot state = %s, want settled", settled.State)
	}
	if settled.Generation != seeded.Generation {
		t.Errorf("settled generation = %d, want %d", settled.Generation, seeded.Generation)
	}
	// B (3, 9.0) then A (3, 5.0) then C (1, 1.0).
	if got := orderIDs(settled); !equalIDs(got, 2, 1, 3) {
		t.Errorf("settled order = %v, want [2 1 3]", got)
	}
	if settled.Entries[0].Score != 9.0 {
		t.Errorf("top entry score = %g, want 9.0", settled.Entries[0].Score)
	}
}

func TestFailedLookupRanksAsLeastPopular(t *testing.T) {
	source := &swappableSource{items: threeActorItems()}

	lookup := func(ctx context.Context, id models.PersonID) (float64, error) {
		switch id {
		case 1:
			return 5.0, nil
		case 2:
			return 9.0, nil
		default:
			return 0, errors.New("person lookup failed")
		}
	}

	h := newHarness(t, source, lookup, Config{WindowSize: 10})
	h.stab.Trigger(TriggerInitialShow)

	_ = h.next(t, time.Second) // seeded
	settled := h.next(t, time.Second)

	// C's lookup failed: score 0, position unchanged relative to baseline.
	if got := orderIDs(settled); !equalIDs(got, 2, 1, 3) {
		t.Errorf("settled order = %v, want [2 1 3]", got)
	}
	if settled.Entries[2].Score != 0 {
		t.Errorf("failed entry score = %g, want 0", settled.Entries[2].Score)
	}
}

func TestStaleGenerationDiscarded(t *testing.T) {
	// Generation 1 covers persons 1 and 2, whose lookups block until
	// released. A filter change swaps the collection to persons 3 and 4
	// before generation 1 completes.
	source := &swappableSource{items: []models.MediaItem{
		castItem("old1", cc(1, "Old A")),
		castItem("old2", cc(2, "Old B"), cc(2, "Old B")),
	}}

	release := make(chan struct{})
	lookup := func(ctx context.Context, id models.PersonID) (float64, error) {
		if id <= 2 {
			<-release
			return 50.0, nil
		}
		return float64(id), nil
	}

	h := newHarness(t, source, lookup, Config{WindowSize: 10})
	h.stab.Trigger(TriggerInitialShow)

	g1 := h.next(t, time.Second)
	if g1.State != StateSeeded {
		t.Fatalf("state = %s, want seeded", g1.State)
	}

	source.swap([]models.MediaItem{
		castItem("new1", cc(3, "New C"), cc(4, "New D")),
	})
	h.stab.Trigger(TriggerFilterChange)

	g2seeded := h.next(t, time.Second)
	if g2seeded.Generation <= g1.Generation {
		t.Fatalf("filter change generation = %d, want > %d", g2seeded.Generation, g1.Generation)
	}
	if got := orderIDs(g2seeded); !equalIDs(got, 3, 4) {
		t.Errorf("new baseline = %v, want [3 4]", got)
	}

	g2settled := h.next(t, time.Second)
	if g2settled.State != StateSettled || g2settled.Generation != g2seeded.Generation {
		t.Fatalf("snapshot = gen %d %s, want gen %d settled", g2settled.Generation, g2settled.State, g2seeded.Generation)
	}

	// Release generation 1's lookups; its result must be discarded
	// silently, leaving the displayed order untouched.
	close(release)
	h.none(t, 150*time.Millisecond)

	current := h.stab.Current()
	if current.Generation != g2settled.Generation || current.State != StateSettled {
		t.Errorf("current = gen %d %s, want gen %d settled", current.Generation, current.State, g2settled.Generation)
	}
	if got := orderIDs(current); !equalIDs(got, 4, 3) {
		// Person 4 scores 4.0, person 3 scores 3.0, equal counts.
		t.Errorf("final order = %v, want [4 3]", got)
	}
}

func TestItemCountChangesDebounced(t *testing.T) {
	const debounce = 80 * time.Millisecond

	source := &swappableSource{items: threeActorItems()}
	lookup := func(ctx context.Context, id models.PersonID) (float64, error) {
		return 1.0, nil
	}

	h := newHarness(t, source, lookup, Config{WindowSize: 10, Debounce: debounce})

	// Five rapid item-count changes: exactly one cycle, starting at least
	// one quiet period after the last trigger.
	var last time.Time
	for i := 0; i < 5; i++ {
		h.stab.Trigger(TriggerItemCountChange)
		last = time.Now()
		time.Sleep(15 * time.Millisecond)
	}

	seeded := h.next(t, time.Second)
	if seeded.State != StateSeeded {
		t.Fatalf("state = %s, want seeded", seeded.State)
	}
	if elapsed := time.Since(last); elapsed < debounce {
		t.Errorf("cycle started %s after last trigger, want >= %s", elapsed, debounce)
	}
	if seeded.Generation != 1 {
		t.Errorf("generation = %d, want 1 (coalesced into a single cycle)", seeded.Generation)
	}

	settled := h.next(t, time.Second)
	if settled.State != StateSettled {
		t.Fatalf("state = %s, want settled", settled.State)
	}

	// No further cycles pending.
	h.none(t, debounce+80*time.Millisecond)
}

func TestFilterChangeNotDebounced(t *testing.T) {
	source := &swappableSource{items: threeActorItems()}
	lookup := func(ctx context.Context, id models.PersonID) (float64, error) {
		return 1.0, nil
	}

	h := newHarness(t, source, lookup, Config{WindowSize: 10, Debounce: 500 * time.Millisecond})

	start := time.Now()
	h.stab.Trigger(TriggerFilterChange)

	seeded := h.next(t, time.Second)
	if seeded.State != StateSeeded {
		t.Fatalf("state = %s, want seeded", seeded.State)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("filter change took %s to seed; must not be debounced", elapsed)
	}
}

func TestWindowChangeTriggersCycle(t *testing.T) {
	source := &swappableSource{items: threeActorItems()}
	lookup := func(ctx context.Context, id models.PersonID) (float64, error) {
		return 1.0, nil
	}

	h := newHarness(t, source, lookup, Config{WindowSize: 10})

	h.stab.SetWindow(5)

	seeded := h.next(t, time.Second)
	if seeded.State != StateSeeded {
		t.Fatalf("state = %s, want seeded", seeded.State)
	}
	if seeded.Window != 5 {
		t.Errorf("window = %d, want 5", seeded.Window)
	}
}

func TestPendingDebounceAbsorbedByImmediateTrigger(t *testing.T) {
	source := &swappableSource{items: threeActorItems()}
	lookup := func(ctx context.Context, id models.PersonID) (float64, error) {
		return 1.0, nil
	}

	h := newHarness(t, source, lookup, Config{WindowSize: 10, Debounce: 200 * time.Millisecond})

	// An item-count change waiting out its quiet period is covered by the
	// immediate cycle a filter change mints; no second cycle follows.
	h.stab.Trigger(TriggerItemCountChange)
	time.Sleep(20 * time.Millisecond)
	h.stab.Trigger(TriggerFilterChange)

	seeded := h.next(t, time.Second)
	if seeded.State != StateSeeded || seeded.Generation != 1 {
		t.Fatalf("snapshot = gen %d %s, want gen 1 seeded", seeded.Generation, seeded.State)
	}
	settled := h.next(t, time.Second)
	if settled.State != StateSettled {
		t.Fatalf("state = %s, want settled", settled.State)
	}

	h.none(t, 300*time.Millisecond)
}
