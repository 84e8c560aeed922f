// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

package services

import "context"

// ContextRunner is a run loop that already follows the suture pattern:
// block until the context is canceled, then return. The stabilizer's
// Serve, the hub's RunWithContext and the store's RunGC all qualify.
type ContextRunner func(ctx context.Context) error

// RunnerService names a ContextRunner for supervision. The wrapper
// exists so suture event logs carry a stable service name instead of a
// function pointer.
type RunnerService struct {
	name string
	run  ContextRunner
}

// NewRunnerService wraps a run loop as a supervised service.
func NewRunnerService(name string, run ContextRunner) *RunnerService {
	return &RunnerService{name: name, run: run}
}

// Serve implements suture.Service.
func (r *RunnerService) Serve(ctx context.Context) error {
	return r.run(ctx)
}

// String identifies the service in suture event logs.
func (r *RunnerService) String() string {
	return r.name
}
