// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package ranking

import (
	"context"
	"sync"
	"time"

	"github.com/dbeaumont-media/marquee/internal/aggregate"
	"github.com/dbeaumont-media/marquee/internal/enrich"
	"github.com/dbeaumont-media/marquee/internal/logging"
	"github.com/dbeaumont-media/marquee/internal/metrics"
	"github.com/dbeaumont-media/marquee/internal/models"
)

// TriggerKind identifies why a recomputation cycle starts.
type TriggerKind int

const (
	// TriggerInitialShow is the first display of the ranking.
	TriggerInitialShow TriggerKind = iota

	// TriggerFilterChange fires when the library filter changes.
	// Not debounced: filter changes are explicit user actions.
	TriggerFilterChange

	// TriggerItemCountChange fires when items enter or leave the filtered
	// collection. Debounced, since cloud sync can deliver many in a burst.
	TriggerItemCountChange

	// TriggerWindowChange fires when the visible window size changes.
	// Not debounced.
	TriggerWindowChange
)

// String implements fmt.Stringer, used as a metric label.
func (k TriggerKind) String() string {
	switch k {
	case TriggerInitialShow:
		return "initial_show"
	case TriggerFilterChange:
		return "filter_change"
	case TriggerItemCountChange:
		return "item_count_change"
	case TriggerWindowChange:
		return "window_change"
	default:
		return "unknown"
	}
}

// State is the lifecycle position of the published snapshot.
type State string

const (
	// StateSeeded means the baseline order is showing, enrichment pending.
	StateSeeded State = "seeded"

	// StateSettled means the latest non-superseded enrichment is applied.
	StateSettled State = "settled"
)

// Snapshot is the published best-known ordering at a point in time.
type Snapshot struct {
	Generation uint64               `json:"generation"`
	State      State                `json:"state"`
	Entries    []models.RankedEntry `json:"entries"`
	Window     int                  `json:"window"`
	ComputedAt time.Time            `json:"computed_at"`
}

// Source supplies the current filtered item collection. Items must return
// a view consistent with the filter at call time; the stabilizer never
// caches it across cycles.
type Source interface {
	Items() []models.MediaItem
}

// Listener receives every published snapshot. Listeners run on the owner
// goroutine and must not block.
type Listener func(Snapshot)

// Config holds stabilizer tuning.
type Config struct {
	// Debounce is the quiet period after an item-count trigger before a
	// cycle starts. Zero mints immediately on the next loop pass.
	Debounce time.Duration

	// WindowSize is the number of leading entries resolved in the first
	// enrichment phase.
	WindowSize int

	// Extract overrides the credit extractor. Nil uses aggregate.ByCast.
	Extract aggregate.CreditFunc
}

// cycleResult carries a finished enrichment pass back to the owner loop.
type cycleResult struct {
	generation uint64
	baseline   []models.CastEntry
	scores     map[models.PersonID]float64
}

// Stabilizer owns the displayed ordering. Run it via Serve; interact via
// Trigger, SetWindow, Current and AddListener.
type Stabilizer struct {
	source  Source
	cache   *enrich.Cache
	lookup  enrich.LookupFunc
	extract aggregate.CreditFunc

	debounce time.Duration

	triggers chan TriggerKind
	windowCh chan int
	results  chan cycleResult

	// Owner-goroutine state: touched only inside Serve.
	generation uint64
	windowSize int

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []Listener
}

// NewStabilizer creates a stabilizer over the given source, cache and
// lookup. Serve must be started before triggers have any effect.
func NewStabilizer(source Source, cache *enrich.Cache, lookup enrich.LookupFunc, cfg Config) *Stabilizer {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = 20
	}
	extract := cfg.Extract
	if extract == nil {
		extract = aggregate.ByCast
	}

	return &Stabilizer{
		source:     source,
		cache:      cache,
		lookup:     lookup,
		extract:    extract,
		debounce:   cfg.Debounce,
		triggers:   make(chan TriggerKind, 16),
		windowCh:   make(chan int, 1),
		results:    make(chan cycleResult, 4),
		windowSize: cfg.WindowSize,
		snapshot: Snapshot{
			State:   StateSeeded,
			Entries: []models.RankedEntry{},
			Window:  cfg.WindowSize,
		},
	}
}

// Trigger requests a recomputation cycle of the given kind.
// Safe to call from any goroutine.
func (s *Stabilizer) Trigger(kind TriggerKind) {
	s.triggers <- kind
}

// FilterChanged requests an immediate cycle for a changed collection
// filter. Together with ItemCountChanged it lets the stabilizer act as
// the library's change notifier.
func (s *Stabilizer) FilterChanged() {
	s.Trigger(TriggerFilterChange)
}

// ItemCountChanged requests a debounced cycle for an item added or
// removed.
func (s *Stabilizer) ItemCountChanged() {
	s.Trigger(TriggerItemCountChange)
}

// SetWindow changes the visible window size and triggers a cycle.
// Values < 1 are ignored.
func (s *Stabilizer) SetWindow(n int) {
	if n < 1 {
		return
	}
	// Coalesce: only the latest pending window size matters.
	for {
		select {
		case s.windowCh <- n:
			return
		default:
			select {
			case <-s.windowCh:
			default:
			}
		}
	}
}

// Current returns the latest published snapshot.
func (s *Stabilizer) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// AddListener registers a listener for every published snapshot.
// Must be called before Serve starts.
func (s *Stabilizer) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Serve runs the owner loop until the context is canceled. It implements
// suture.Service and is safe to restart: the cache survives restarts, the
// snapshot reseeds on the next trigger.
func (s *Stabilizer) Serve(ctx context.Context) error {
	logging.Info().
		Dur("debounce", s.debounce).
		Int("window", s.windowSize).
		Msg("ranking stabilizer started")

	var debounceTimer *time.Timer
	var debounceC <-chan time.Time

	stopDebounce := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
			debounceTimer = nil
			debounceC = nil
		}
	}
	defer stopDebounce()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case kind := <-s.triggers:
			if kind == TriggerItemCountChange {
				// Debounce: restart the quiet period, abandoning any wait
				// in progress. The cycle for the earlier trigger never
				// starts, so there is nothing to discard yet.
				if debounceTimer != nil {
					metrics.DebouncedTriggers.Inc()
					stopDebounce()
				}
				debounceTimer = time.NewTimer(s.debounce)
				debounceC = debounceTimer.C
				continue
			}
			// An immediate cycle recomputes from current collection state,
			// which also covers any item-count change still waiting out
			// its quiet period.
			stopDebounce()
			s.beginCycle(ctx, kind)

		case n := <-s.windowCh:
			s.windowSize = n
			stopDebounce()
			s.beginCycle(ctx, TriggerWindowChange)

		case <-debounceC:
			stopDebounce()
			s.beginCycle(ctx, TriggerItemCountChange)

		case res := <-s.results:
			s.settle(res)
		}
	}
}

// beginCycle mints a new generation, publishes the baseline order
// immediately, and starts the asynchronous enrichment pass.
func (s *Stabilizer) beginCycle(ctx context.Context, kind TriggerKind) {
	s.generation++
	gen := s.generation
	metrics.GenerationsMinted.WithLabelValues(kind.String()).Inc()

	started := time.Now()
	baseline := aggregate.Cast(s.source.Items(), s.extract)
	metrics.ReorderDuration.WithLabelValues("baseline").Observe(time.Since(started).Seconds())

	s.publish(Snapshot{
		Generation: gen,
		State:      StateSeeded,
		Entries:    unranked(baseline),
		Window:     s.windowSize,
		ComputedAt: time.Now().UTC(),
	})

	logging.Debug().
		Uint64("generation", gen).
		Str("trigger", kind.String()).
		Int("entries", len(baseline)).
		Msg("ranking cycle seeded")

	go s.enrichCycle(ctx, gen, baseline, s.windowSize)
}

// enrichCycle resolves popularity in two phases and reports back to the
// owner loop. Phase one covers the visible window for perceived latency;
// phase two covers the full set so tie-breaking is correct even for
// entries outside the window.
func (s *Stabilizer) enrichCycle(ctx context.Context, gen uint64, baseline []models.CastEntry, window int) {
	visible := baseline
	if len(visible) > window {
		visible = visible[:window]
	}

	started := time.Now()
	s.cache.Resolve(ctx, aggregate.Keys(visible), s.lookup)
	metrics.ReorderDuration.WithLabelValues("enrich_visible").Observe(time.Since(started).Seconds())

	started = time.Now()
	s.cache.Resolve(ctx, aggregate.Keys(baseline), s.lookup)
	metrics.ReorderDuration.WithLabelValues("enrich_full").Observe(time.Since(started).Seconds())

	res := cycleResult{
		generation: gen,
		baseline:   baseline,
		scores:     s.cache.Scores(aggregate.Keys(baseline)),
	}

	select {
	case s.results <- res:
	case <-ctx.Done():
	}
}

// settle applies a finished enrichment pass, unless a newer generation
// superseded it while the pass was in flight.
func (s *Stabilizer) settle(res cycleResult) {
	if res.generation != s.generation {
		metrics.GenerationsDiscarded.Inc()
		logging.Debug().
			Uint64("generation", res.generation).
			Uint64("current", s.generation).
			Msg("stale enrichment result discarded")
		return
	}

	started := time.Now()
	entries := Rank(res.baseline, res.scores)
	metrics.ReorderDuration.WithLabelValues("apply").Observe(time.Since(started).Seconds())

	s.publish(Snapshot{
		Generation: res.generation,
		State:      StateSettled,
		Entries:    entries,
		Window:     s.windowSize,
		ComputedAt: time.Now().UTC(),
	})

	logging.Debug().
		Uint64("generation", res.generation).
		Int("entries", len(entries)).
		Msg("ranking cycle settled")
}

// publish stores the snapshot and fans it out to listeners.
func (s *Stabilizer) publish(snap Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
