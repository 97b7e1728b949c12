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
	"time"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
)

// CallSetResult is the call set of a user, partitioned against a reference time.
type CallSetResult struct {
	EndedCalls     []*models.Call `json:"ended_calls"`
	UpcomingCalls  []*models.Call `json:"upcoming_calls"`
	CallRecordings []*models.Call `json:"call_recordings"`
	IsLoading      bool           `json:"is_loading"`
}

// CallSetRetriever fetches every call a user created or is a member of.
//
// Without a client or an identity the set is cleared. A failed fetch keeps the previous
// set. Only the latest fetch may commit its result or reset the loading flag.
type CallSetRetriever struct {
	mu        sync.Mutex
	gate      fetchGate
	client    domain.CallQuerier
	userID    string
	calls     []*models.Call
	isLoading bool
	started   bool
	closed    bool
}

// NewCallSetRetriever creates an empty, idle CallSetRetriever.
func NewCallSetRetriever() *CallSetRetriever {
	return &CallSetRetriever{gate: newFetchGate()}
}

// Update sets the client and identity the retriever depends on and refetches when they change.
func (r *CallSetRetriever) Update(ctx context.Context, client domain.CallQuerier, identity *models.Identity) {
	userID := ""
	if identity.Ready() {
		userID = identity.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if r.started && r.client == client && r.userID == userID {
		return
	}
	r.started = true
	r.client = client
	r.userID = userID

	if client == nil || userID == "" {
		r.gate.stop()
		r.calls = nil
		r.isLoading = false
		r.gate.broadcast()
		return
	}

	ctx = logging.AppendCtx(ctx, slog.String("user_id", userID))
	taskCtx, generation := r.gate.next(ctx)

	r.isLoading = true
	r.gate.broadcast()

	go r.load(taskCtx, generation, client, userID)
}

func (r *CallSetRetriever) load(ctx context.Context, generation uint64, client domain.CallQuerier, userID string) {
	var (
		calls []*models.Call
		ok    bool
	)

	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if !r.gate.current(generation) {
			slog.DebugContext(ctx, "discarding superseded call set fetch")
			return
		}
		r.gate.finish(generation)
		if ok {
			r.calls = calls
		}
		r.isLoading = false
		r.gate.broadcast()
	}()

	calls, ok = fetchUserCalls(ctx, client, userID)
}

// fetchUserCalls runs the user call query. ok is false when the fetch failed.
func fetchUserCalls(ctx context.Context, client domain.CallQuerier, userID string) (calls []*models.Call, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "panic while fetching calls", logging.ErrKey, fmt.Errorf("%v", p))
			calls, ok = nil, false
		}
	}()

	resp, err := client.QueryCalls(ctx, models.NewUserCallsQuery(userID))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.DebugContext(ctx, "call set fetch cancelled")
			return nil, false
		}
		slog.ErrorContext(ctx, "error fetching calls", logging.ErrKey, err)
		return nil, false
	}
	if resp == nil || resp.Calls == nil {
		return []*models.Call{}, true
	}
	slog.DebugContext(ctx, "fetched calls", "count", len(resp.Calls))
	return resp.Calls, true
}

// Result partitions the current set against now.
// Before the first successful fetch all three collections are nil.
func (r *CallSetRetriever) Result(now time.Time) CallSetResult {
	r.mu.Lock()
	calls, loading := r.calls, r.isLoading
	r.mu.Unlock()

	return CallSetResult{
		EndedCalls:     models.EndedCalls(calls, now),
		UpcomingCalls:  models.UpcomingCalls(calls, now),
		CallRecordings: slices.Clone(calls),
		IsLoading:      loading,
	}
}

// Changes returns a channel closed at the next state change.
func (r *CallSetRetriever) Changes() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gate.changed
}

// Await blocks until the retriever stops loading or ctx is done.
func (r *CallSetRetriever) Await(ctx context.Context) error {
	return waitIdle(ctx, func() (bool, <-chan struct{}) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return false, nil
		}
		return r.isLoading, r.gate.changed
	})
}

// Close cancels any in-flight fetch. Later updates are ignored.
func (r *CallSetRetriever) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.gate.stop()
	r.gate.broadcast()
}
