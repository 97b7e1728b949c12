// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
)

// CallState is the observable state of a CallRetriever.
type CallState struct {
	Call      *models.Call `json:"call"`
	IsLoading bool         `json:"is_loading"`
}

// CallRetriever resolves a call by its identifier and keeps the latest result.
//
// The state starts as {Call: nil, IsLoading: true}. Every change of the client or of the
// identifiers supersedes the in-flight lookup: its result is discarded and its context
// cancelled. Lookup failures are logged and produce {Call: nil, IsLoading: false}.
type CallRetriever struct {
	mu      sync.Mutex
	gate    fetchGate
	client  domain.CallQuerier
	ids     []string
	state   CallState
	started bool
	closed  bool
}

// NewCallRetriever creates a CallRetriever in its initial loading state.
func NewCallRetriever() *CallRetriever {
	return &CallRetriever{
		gate:  newFetchGate(),
		state: CallState{IsLoading: true},
	}
}

// Update sets the client and call identifiers the retriever depends on.
//
// A nil client leaves the retriever waiting with its loading flag untouched. With a client
// and no identifiers there is nothing to look up and the state becomes {nil, false}.
// Calling Update with unchanged dependencies is a no-op.
func (r *CallRetriever) Update(ctx context.Context, client domain.CallQuerier, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if r.started && r.client == client && slices.Equal(r.ids, ids) {
		return
	}
	r.started = true
	r.client = client
	r.ids = slices.Clone(ids)

	if client == nil {
		r.gate.stop()
		return
	}

	if len(ids) == 0 {
		r.gate.stop()
		r.state = CallState{}
		r.gate.broadcast()
		return
	}

	ctx = logging.AppendCtx(ctx, slog.Any("call_ids", r.ids))
	taskCtx, generation := r.gate.next(ctx)

	r.state = CallState{IsLoading: true}
	r.gate.broadcast()

	go r.load(taskCtx, generation, client, r.ids)
}

func (r *CallRetriever) load(ctx context.Context, generation uint64, client domain.CallQuerier, ids []string) {
	call := fetchCall(ctx, client, ids)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.gate.current(generation) {
		slog.DebugContext(ctx, "discarding superseded call lookup")
		return
	}
	r.gate.finish(generation)
	r.state = CallState{Call: call}
	r.gate.broadcast()
}

// fetchCall queries the backend and returns the first match; any failure yields nil.
func fetchCall(ctx context.Context, client domain.CallQuerier, ids []string) (call *models.Call) {
	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "panic while looking up call", logging.ErrKey, fmt.Errorf("%v", p))
			call = nil
		}
	}()

	resp, err := client.QueryCalls(ctx, models.NewCallsByIDQuery(ids...))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.DebugContext(ctx, "call lookup cancelled")
			return nil
		}
		slog.ErrorContext(ctx, "error looking up call", logging.ErrKey, err)
		return nil
	}
	if resp == nil || len(resp.Calls) == 0 {
		slog.DebugContext(ctx, "no call matched")
		return nil
	}
	return resp.Calls[0]
}

// State returns a snapshot of the current state.
func (r *CallRetriever) State() CallState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Changes returns a channel closed at the next state change.
func (r *CallRetriever) Changes() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gate.changed
}

// Await blocks until the retriever stops loading or ctx is done.
func (r *CallRetriever) Await(ctx context.Context) error {
	return waitIdle(ctx, func() (bool, <-chan struct{}) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return false, nil
		}
		return r.state.IsLoading, r.gate.changed
	})
}

// Close cancels any in-flight lookup. Later updates are ignored.
func (r *CallRetriever) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.gate.stop()
	r.gate.broadcast()
}
