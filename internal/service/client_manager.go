// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
)

// ClientManagerConfig configures a ClientManager.
type ClientManagerConfig struct {
	// APIKey is the calling backend API key. It is required.
	APIKey string
	// Events, when set, is told about every client that becomes ready.
	Events domain.ClientEventSender
}

// ClientManager owns the lifecycle of the single call client of one session.
//
// The client exists only while a resolved identity is set. A new identity replaces the
// client; the previous one is released exactly once. Every change of the handle is
// broadcast on the channel returned by Changes.
type ClientManager struct {
	config        ClientManagerConfig
	factory       domain.ClientFactory
	tokenProvider domain.TokenProvider

	// buildMu serializes SetIdentity and Close so two builds never race.
	buildMu sync.Mutex

	mu       sync.RWMutex
	identity *models.Identity
	client   domain.CallClient
	changed  chan struct{}
	closed   bool
}

// NewClientManager creates a ClientManager. A missing API key is a configuration error.
func NewClientManager(config ClientManagerConfig, factory domain.ClientFactory, tokenProvider domain.TokenProvider) (*ClientManager, error) {
	if config.APIKey == "" {
		return nil, domain.NewConfigurationError("call client manager requires an API key", domain.ErrMissingAPIKey)
	}
	if factory == nil {
		return nil, domain.NewConfigurationError("call client manager requires a client factory")
	}
	if tokenProvider == nil {
		return nil, domain.NewConfigurationError("call client manager requires a token provider")
	}

	return &ClientManager{
		config:        config,
		factory:       factory,
		tokenProvider: tokenProvider,
		changed:       make(chan struct{}),
	}, nil
}

// SetIdentity binds the manager to identity.
//
// A nil or unresolved identity releases the current client. The same identity value
// keeps the current client. Any other identity builds a new client and releases the
// previous one. If the build fails for a different user the previous client is still
// released, since it belongs to someone else.
func (m *ClientManager) SetIdentity(ctx context.Context, identity *models.Identity) error {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	m.mu.RLock()
	closed, current, client := m.closed, m.identity, m.client
	m.mu.RUnlock()

	if closed {
		return domain.NewUnavailableError("call client manager is closed", domain.ErrClientClosed)
	}

	if !identity.Ready() {
		if client != nil || current != nil {
			slog.DebugContext(ctx, "identity cleared, releasing call client")
			m.swap(ctx, nil, nil)
		}
		return nil
	}

	if client != nil && current.Equal(identity) {
		return nil
	}

	ctx = logging.AppendCtx(ctx, slog.String("user_id", identity.ID))

	next, err := m.factory.NewClient(ctx, domain.ClientOptions{
		APIKey:        m.config.APIKey,
		User:          identity.ClientUser(),
		TokenProvider: m.tokenProvider,
	})
	if err != nil {
		slog.ErrorContext(ctx, "error building call client", logging.ErrKey, err)
		if current != nil && current.ID != identity.ID {
			m.swap(ctx, nil, nil)
		}
		if domain.GetErrorType(err) == domain.ErrorTypeInternal {
			return domain.NewUnavailableError("failed to connect to the calling backend", err)
		}
		return err
	}

	m.swap(ctx, identity, next)
	slog.InfoContext(ctx, "call client ready")

	if m.config.Events != nil {
		event := models.ClientReadyEvent{
			UserID:  identity.ID,
			Name:    identity.DisplayName(),
			ReadyAt: time.Now().UTC(),
		}
		if err := m.config.Events.SendClientReady(ctx, event); err != nil {
			slog.WarnContext(ctx, "error publishing client ready event", logging.ErrKey, err)
		}
	}

	return nil
}

// swap replaces the handle and identity, broadcasts the change and releases the previous handle.
func (m *ClientManager) swap(ctx context.Context, identity *models.Identity, client domain.CallClient) {
	var stored *models.Identity
	if identity != nil {
		copied := *identity
		stored = &copied
	}

	m.mu.Lock()
	previous := m.client
	m.identity = stored
	m.client = client
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()

	if previous != nil && previous != client {
		release(ctx, previous)
	}
}

func release(ctx context.Context, client domain.CallClient) {
	if err := client.Close(); err != nil {
		slog.WarnContext(ctx, "error releasing call client", logging.ErrKey, err)
	}
}

// Client returns the current handle and whether it is present.
func (m *ClientManager) Client() (domain.CallClient, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client, m.client != nil
}

// Identity returns a copy of the identity the current handle was built for.
func (m *ClientManager) Identity() *models.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return nil
	}
	copied := *m.identity
	return &copied
}

// Ready reports whether a handle is present.
func (m *ClientManager) Ready() bool {
	_, ok := m.Client()
	return ok
}

// Changes returns a channel closed at the next change of the handle.
func (m *ClientManager) Changes() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changed
}

// WaitClient blocks until a handle is present, the manager is closed or ctx is done.
func (m *ClientManager) WaitClient(ctx context.Context) (domain.CallClient, error) {
	for {
		m.mu.RLock()
		client, changed, closed := m.client, m.changed, m.closed
		m.mu.RUnlock()

		if client != nil {
			return client, nil
		}
		if closed {
			return nil, domain.NewUnavailableError("call client manager is closed", domain.ErrClientClosed)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

// Close releases the current handle. The manager can not be used afterwards.
func (m *ClientManager) Close() error {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	previous := m.client
	m.client = nil
	m.identity = nil
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()

	if previous != nil {
		return previous.Close()
	}
	return nil
}
