// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/utils"
)

// stubQuerier is a comparable CallQuerier backed by a function.
type stubQuerier struct {
	fn    func(ctx context.Context, req *models.QueryCallsRequest) (*models.QueryCallsResponse, error)
	calls atomic.Int32
}

func (s *stubQuerier) QueryCalls(ctx context.Context, req *models.QueryCallsRequest) (*models.QueryCallsResponse, error) {
	s.calls.Add(1)
	return s.fn(ctx, req)
}

func returning(calls ...*models.Call) *stubQuerier {
	return &stubQuerier{fn: func(context.Context, *models.QueryCallsRequest) (*models.QueryCallsResponse, error) {
		return &models.QueryCallsResponse{Calls: calls}, nil
	}}
}

func failing(err error) *stubQuerier {
	return &stubQuerier{fn: func(context.Context, *models.QueryCallsRequest) (*models.QueryCallsResponse, error) {
		return nil, err
	}}
}

// blocking returns a querier that answers with calls once release is closed,
// reporting on cancelled if its context is cancelled first.
func blocking(release <-chan struct{}, cancelled chan<- struct{}, calls ...*models.Call) *stubQuerier {
	return &stubQuerier{fn: func(ctx context.Context, _ *models.QueryCallsRequest) (*models.QueryCallsResponse, error) {
		select {
		case <-ctx.Done():
			if cancelled != nil {
				cancelled <- struct{}{}
			}
			return nil, ctx.Err()
		case <-release:
			return &models.QueryCallsResponse{Calls: calls}, nil
		}
	}}
}

func callStartingAt(id string, startsAt time.Time) *models.Call {
	return &models.Call{
		ID:       id,
		CID:      "default:" + id,
		Type:     "default",
		StartsAt: utils.Ptr(startsAt),
	}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func requireClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		require.Fail(t, "channel was not closed")
	}
}
