// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/concurrent"
)

// TokenProviderSource binds a backend token provider to a user.
type TokenProviderSource func(userID string) domain.TokenProvider

// SessionRegistryConfig configures a SessionRegistry.
type SessionRegistryConfig struct {
	APIKey      string
	IdleTimeout time.Duration
	// CloseWorkers bounds how many clients are released concurrently on shutdown.
	CloseWorkers int
}

// Session is the per-user client scope: one ClientManager kept alive while the user is active.
type Session struct {
	userID   string
	manager  *ClientManager
	lastSeen time.Time // guarded by the registry mutex
}

// UserID returns the user the session belongs to.
func (s *Session) UserID() string {
	return s.userID
}

// Manager returns the session's client manager.
func (s *Session) Manager() *ClientManager {
	return s.manager
}

// SessionRegistry keeps one Session per user and releases sessions that go idle.
type SessionRegistry struct {
	config  SessionRegistryConfig
	factory domain.ClientFactory
	tokens  TokenProviderSource
	events  domain.ClientEventSender
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewSessionRegistry creates a SessionRegistry. events is optional.
func NewSessionRegistry(
	config SessionRegistryConfig,
	factory domain.ClientFactory,
	tokens TokenProviderSource,
	events domain.ClientEventSender,
) (*SessionRegistry, error) {
	if config.APIKey == "" {
		return nil, domain.NewConfigurationError("session registry requires an API key", domain.ErrMissingAPIKey)
	}
	if factory == nil || tokens == nil {
		return nil, domain.NewConfigurationError("session registry requires a client factory and a token source")
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaultSessionIdleTimeout
	}
	if config.CloseWorkers <= 0 {
		config.CloseWorkers = 4
	}

	return &SessionRegistry{
		config:   config,
		factory:  factory,
		tokens:   tokens,
		events:   events,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}, nil
}

// Acquire returns the session of identity, creating it on first use, and binds its
// client manager to the identity.
func (r *SessionRegistry) Acquire(ctx context.Context, identity *models.Identity) (*Session, error) {
	if !identity.Ready() {
		return nil, domain.NewUnauthorizedError("identity is not resolved", domain.ErrUnauthorized)
	}

	// A session swept between lookup and bind is closed; retry once with a fresh one.
	for attempt := 0; ; attempt++ {
		session, err := r.lookup(identity.ID)
		if err != nil {
			return nil, err
		}

		err = session.manager.SetIdentity(ctx, identity)
		if err == nil {
			return session, nil
		}
		if attempt == 0 && errors.Is(err, domain.ErrClientClosed) {
			continue
		}
		return nil, err
	}
}

func (r *SessionRegistry) lookup(userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, domain.NewUnavailableError("session registry is closed", domain.ErrClientClosed)
	}

	session, ok := r.sessions[userID]
	if !ok {
		manager, err := NewClientManager(
			ClientManagerConfig{APIKey: r.config.APIKey, Events: r.events},
			r.factory,
			r.tokens(userID),
		)
		if err != nil {
			return nil, err
		}
		session = &Session{userID: userID, manager: manager}
		r.sessions[userID] = session
	}
	session.lastSeen = r.now()

	return session, nil
}

// Touch marks the session of userID as in use.
func (r *SessionRegistry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[userID]; ok {
		session.lastSeen = r.now()
	}
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep releases every session idle for longer than the idle timeout at now.
// It returns the number of sessions released.
func (r *SessionRegistry) Sweep(ctx context.Context, now time.Time) int {
	r.mu.Lock()
	var idle []*Session
	for userID, session := range r.sessions {
		if now.Sub(session.lastSeen) > r.config.IdleTimeout {
			idle = append(idle, session)
			delete(r.sessions, userID)
		}
	}
	r.mu.Unlock()

	if len(idle) > 0 {
		slog.DebugContext(ctx, "releasing idle sessions", "count", len(idle))
		r.closeSessions(ctx, idle)
	}
	return len(idle)
}

// Run sweeps idle sessions until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(max(r.config.IdleTimeout/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx, r.now())
		}
	}
}

// Close releases every session. Acquire fails afterwards.
func (r *SessionRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	return errors.Join(r.closeSessions(ctx, sessions)...)
}

func (r *SessionRegistry) closeSessions(ctx context.Context, sessions []*Session) []error {
	functions := make([]func() error, 0, len(sessions))
	for _, session := range sessions {
		functions = append(functions, session.manager.Close)
	}

	errs := concurrent.NewWorkerPool(r.config.CloseWorkers).RunAll(ctx, functions...)
	for _, err := range errs {
		slog.WarnContext(ctx, "error releasing session", logging.ErrKey, err)
	}
	return errs
}
