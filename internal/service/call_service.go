// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
)

// CallService answers call lookups on behalf of authenticated users.
type CallService struct {
	Auth     *AuthService
	Sessions *SessionRegistry
	Config   ServiceConfig
	now      func() time.Time
}

// NewCallService creates a new CallService.
func NewCallService(auth *AuthService, sessions *SessionRegistry, config ServiceConfig) *CallService {
	return &CallService{
		Auth:     auth,
		Sessions: sessions,
		Config:   config.withDefaults(),
		now:      time.Now,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *CallService) ServiceReady() bool {
	return s.Auth != nil && s.Auth.ServiceReady() && s.Sessions != nil
}

// Now returns the reference time calls are partitioned against.
func (s *CallService) Now() time.Time {
	return s.now()
}

// session resolves the bearer token and acquires the caller's session.
func (s *CallService) session(ctx context.Context, bearerToken string) (context.Context, *Session, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return ctx, nil, domain.ErrServiceUnavailable
	}

	identity, err := s.Auth.ParseIdentity(ctx, bearerToken)
	if err != nil {
		return ctx, nil, err
	}
	ctx = logging.AppendCtx(ctx, slog.String("user_id", identity.ID))

	session, err := s.Sessions.Acquire(ctx, identity)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, session, nil
}

// waitClient waits for the session's client. A timeout is not an error: the caller
// reports the still-loading state instead.
func waitClient(ctx context.Context, manager *ClientManager) (domain.CallClient, error) {
	client, err := manager.WaitClient(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		slog.WarnContext(ctx, "timed out waiting for call client")
		return nil, nil
	}
	return client, err
}

// resolveWithClient runs resolve with the manager's client. When the client was replaced
// while resolve ran, the lookup is repeated with the new one until the client stays put
// or ctx is done.
func resolveWithClient(ctx context.Context, manager *ClientManager, resolve func(domain.CallClient)) error {
	for {
		client, err := waitClient(ctx, manager)
		if err != nil {
			return err
		}
		resolve(client)
		if client == nil || ctx.Err() != nil {
			return nil
		}
		if current, ok := manager.Client(); ok && current == client {
			return nil
		}
		slog.DebugContext(ctx, "call client replaced during lookup, resolving again")
	}
}

// GetCall resolves one call by identifier. Several identifiers match any of them.
// The returned state is still loading when resolution did not finish within ResolveTimeout.
func (s *CallService) GetCall(ctx context.Context, bearerToken string, ids ...string) (CallState, error) {
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return CallState{}, domain.NewValidationError("call id is required")
	}

	ctx, session, err := s.session(ctx, bearerToken)
	if err != nil {
		return CallState{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.Config.ResolveTimeout)
	defer cancel()

	retriever := NewCallRetriever()
	defer retriever.Close()

	err = resolveWithClient(ctx, session.Manager(), func(client domain.CallClient) {
		retriever.Update(ctx, client, ids...)
		if err := retriever.Await(ctx); err != nil {
			slog.WarnContext(ctx, "call lookup did not finish in time", logging.ErrKey, err)
		}
	})
	if err != nil {
		return CallState{}, err
	}
	return retriever.State(), nil
}

// ListCalls returns the caller's calls, partitioned against the current time.
func (s *CallService) ListCalls(ctx context.Context, bearerToken string) (CallSetResult, error) {
	ctx, session, err := s.session(ctx, bearerToken)
	if err != nil {
		return CallSetResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.Config.ResolveTimeout)
	defer cancel()

	retriever := NewCallSetRetriever()
	defer retriever.Close()

	manager := session.Manager()
	noClient := false
	err = resolveWithClient(ctx, manager, func(client domain.CallClient) {
		if client == nil {
			noClient = true
			return
		}
		retriever.Update(ctx, client, manager.Identity())
		if err := retriever.Await(ctx); err != nil {
			slog.WarnContext(ctx, "call set fetch did not finish in time", logging.ErrKey, err)
		}
	})
	if err != nil {
		return CallSetResult{}, err
	}
	if noClient {
		return CallSetResult{IsLoading: true}, nil
	}
	return retriever.Result(s.now()), nil
}

// WatchCall returns a CallRetriever kept bound to the caller's client until ctx is done.
func (s *CallService) WatchCall(ctx context.Context, bearerToken string, ids ...string) (*CallRetriever, *Session, error) {
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return nil, nil, domain.NewValidationError("call id is required")
	}

	ctx, session, err := s.session(ctx, bearerToken)
	if err != nil {
		return nil, nil, err
	}

	retriever := NewCallRetriever()
	go bindToClient(ctx, session.Manager(), retriever.Close, func(client domain.CallQuerier) {
		retriever.Update(ctx, client, ids...)
	})
	return retriever, session, nil
}

// WatchCalls returns a CallSetRetriever kept bound to the caller's client until ctx is done.
func (s *CallService) WatchCalls(ctx context.Context, bearerToken string) (*CallSetRetriever, *Session, error) {
	ctx, session, err := s.session(ctx, bearerToken)
	if err != nil {
		return nil, nil, err
	}

	manager := session.Manager()
	retriever := NewCallSetRetriever()
	go bindToClient(ctx, manager, retriever.Close, func(client domain.CallQuerier) {
		retriever.Update(ctx, client, manager.Identity())
	})
	return retriever, session, nil
}

// bindToClient feeds every client change of manager to update until ctx is done.
func bindToClient(ctx context.Context, manager *ClientManager, done func(), update func(domain.CallQuerier)) {
	defer done()
	for {
		changes := manager.Changes()

		var querier domain.CallQuerier
		if client, ok := manager.Client(); ok {
			querier = client
		}
		update(querier)

		select {
		case <-ctx.Done():
			return
		case <-changes:
		}
	}
}

// normalizeIDs trims identifiers and drops blanks and duplicates, keeping order.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
