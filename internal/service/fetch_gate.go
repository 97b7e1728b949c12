// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
)

// fetchGate fences fetch tasks by generation and broadcasts state changes.
// It is not safe for concurrent use; its owner guards it with its own mutex.
type fetchGate struct {
	generation uint64
	cancel     context.CancelFunc
	changed    chan struct{}
}

func newFetchGate() fetchGate {
	return fetchGate{changed: make(chan struct{})}
}

// next supersedes any in-flight task and returns the context and generation of a new one.
// The task context keeps the parent's values (log attributes, trace) but not its cancellation,
// so a task outlives the call that triggered it and ends only when superseded or stopped.
func (g *fetchGate) next(parent context.Context) (context.Context, uint64) {
	if g.cancel != nil {
		g.cancel()
	}
	g.generation++
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	g.cancel = cancel
	return ctx, g.generation
}

// current reports whether generation is still the latest issued one.
func (g *fetchGate) current(generation uint64) bool {
	return g.generation == generation
}

// finish releases the context of the current task.
func (g *fetchGate) finish(generation uint64) {
	if g.current(generation) && g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

// stop cancels the in-flight task, if any, and makes sure it can no longer commit.
func (g *fetchGate) stop() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.generation++
}

// broadcast wakes everyone waiting on the current changes channel.
func (g *fetchGate) broadcast() {
	close(g.changed)
	g.changed = make(chan struct{})
}

// waitIdle blocks until busy reports false, the changes channel being re-read after every wake-up.
func waitIdle(ctx context.Context, snapshot func() (busy bool, changed <-chan struct{})) error {
	for {
		busy, changed := snapshot()
		if !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
