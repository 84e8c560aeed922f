// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package tmdb

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/dbeaumont-media/marquee/internal/logging"
	"github.com/dbeaumont-media/marquee/internal/metrics"
	"github.com/dbeaumont-media/marquee/internal/models"
)

// BreakerClient wraps a PopularityLookup with a circuit breaker so a
// failing upstream trips open and subsequent lookups fail fast instead of
// queueing behind timeouts. An open-circuit failure is recorded by the
// enrichment cache like any other lookup failure (score 0), which keeps
// the degradation path identical: baseline order, never an error.
//
// The breaker uses real time for its recovery window. Tests exercise the
// wrapped client directly.
type BreakerClient struct {
	lookup PopularityLookup
	cb     *gobreaker.CircuitBreaker[float64]
	name   string
}

// NewBreakerClient wraps lookup with a circuit breaker.
//
// Settings: opens at >= 60% failures over at least 10 requests within a
// 1 minute window; half-open after 2 minutes allowing 3 trial requests.
// ErrPersonNotFound does not count as a failure: a missing person is a
// definitive answer, not an upstream outage.
func NewBreakerClient(lookup PopularityLookup) *BreakerClient {
	const cbName = "tmdb-person"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[float64](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPersonNotFound)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateString(from)).
				Str("to", stateString(to)).
				Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &BreakerClient{lookup: lookup, cb: cb, name: cbName}
}

// PersonPopularity implements PopularityLookup through the breaker.
func (b *BreakerClient) PersonPopularity(ctx context.Context, id models.PersonID) (float64, error) {
	score, err := b.cb.Execute(func() (float64, error) {
		return b.lookup.PersonPopularity(ctx, id)
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}

	return score, err
}

func stateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
