// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
)

type tokenRecorder struct {
	mu    sync.Mutex
	users []string
}

func (r *tokenRecorder) source(userID string) domain.TokenProvider {
	r.mu.Lock()
	r.users = append(r.users, userID)
	r.mu.Unlock()
	return func(context.Context) (string, error) {
		return "token-for-" + userID, nil
	}
}

func newTestRegistry(t *testing.T, factory *mocks.MockClientFactory, now *time.Time) (*SessionRegistry, *tokenRecorder) {
	t.Helper()
	tokens := &tokenRecorder{}
	r, err := NewSessionRegistry(SessionRegistryConfig{APIKey: "key", IdleTimeout: time.Minute}, factory, tokens.source, nil)
	require.NoError(t, err)
	if now != nil {
		r.now = func() time.Time { return *now }
	}
	return r, tokens
}

func TestNewSessionRegistry_Validation(t *testing.T) {
	factory := &mocks.MockClientFactory{}
	tokens := &tokenRecorder{}

	_, err := NewSessionRegistry(SessionRegistryConfig{}, factory, tokens.source, nil)
	assert.ErrorIs(t, err, domain.ErrMissingAPIKey)
	assert.True(t, domain.IsFatal(err))

	_, err = NewSessionRegistry(SessionRegistryConfig{APIKey: "key"}, nil, tokens.source, nil)
	assert.True(t, domain.IsFatal(err))

	_, err = NewSessionRegistry(SessionRegistryConfig{APIKey: "key"}, factory, nil, nil)
	assert.True(t, domain.IsFatal(err))
}

func TestSessionRegistry_Acquire(t *testing.T) {
	factory := &mocks.MockClientFactory{}
	factory.On("NewClient", mock.Anything, mock.Anything).Return(&mocks.MockCallClient{}, nil)

	r, tokens := newTestRegistry(t, factory, nil)

	first, err := r.Acquire(context.Background(), &models.Identity{ID: "u1"})
	require.NoError(t, err)
	again, err := r.Acquire(context.Background(), &models.Identity{ID: "u1"})
	require.NoError(t, err)
	other, err := r.Acquire(context.Background(), &models.Identity{ID: "u2"})
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Equal(t, "u1", first.UserID())
	assert.True(t, first.Manager().Ready())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"u1", "u2"}, tokens.users)
	factory.AssertNumberOfCalls(t, "NewClient", 2)
}

func TestSessionRegistry_AcquireRejectsUnresolvedIdentity(t *testing.T) {
	r, _ := newTestRegistry(t, &mocks.MockClientFactory{}, nil)

	for _, identity := range []*models.Identity{nil, {}} {
		session, err := r.Acquire(context.Background(), identity)
		assert.Nil(t, session)
		assert.Equal(t, domain.ErrorTypeUnauthorized, domain.GetErrorType(err))
	}
	assert.Equal(t, 0, r.Len())
}

func TestSessionRegistry_Sweep(t *testing.T) {
	idleClient := &mocks.MockCallClient{}
	idleClient.On("Close").Return(nil).Once()
	activeClient := &mocks.MockCallClient{}

	factory := &mocks.MockClientFactory{}
	factory.On("NewClient", mock.Anything, mock.MatchedBy(func(o domain.ClientOptions) bool { return o.User.ID == "idle" })).Return(idleClient, nil)
	factory.On("NewClient", mock.Anything, mock.MatchedBy(func(o domain.ClientOptions) bool { return o.User.ID == "active" })).Return(activeClient, nil)

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	r, _ := newTestRegistry(t, factory, &now)

	_, err := r.Acquire(context.Background(), &models.Identity{ID: "idle"})
	require.NoError(t, err)
	_, err = r.Acquire(context.Background(), &models.Identity{ID: "active"})
	require.NoError(t, err)

	assert.Equal(t, 0, r.Sweep(context.Background(), now.Add(30*time.Second)))

	now = now.Add(45 * time.Second)
	r.Touch("active")

	released := r.Sweep(context.Background(), now.Add(30*time.Second))
	assert.Equal(t, 1, released)
	assert.Equal(t, 1, r.Len())
	idleClient.AssertExpectations(t)
	activeClient.AssertNotCalled(t, "Close")
}

func TestSessionRegistry_Close(t *testing.T) {
	client := &mocks.MockCallClient{}
	client.On("Close").Return(nil).Once()
	factory := &mocks.MockClientFactory{}
	factory.On("NewClient", mock.Anything, mock.Anything).Return(client, nil).Once()

	r, _ := newTestRegistry(t, factory, nil)
	_, err := r.Acquire(context.Background(), &models.Identity{ID: "u1"})
	require.NoError(t, err)

	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, 0, r.Len())
	client.AssertExpectations(t)

	_, err = r.Acquire(context.Background(), &models.Identity{ID: "u1"})
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
}

func TestSessionRegistry_Run(t *testing.T) {
	client := &mocks.MockCallClient{}
	closed := make(chan struct{})
	client.On("Close").Run(func(mock.Arguments) { close(closed) }).Return(nil).Once()
	factory := &mocks.MockClientFactory{}
	factory.On("NewClient", mock.Anything, mock.Anything).Return(client, nil).Once()

	tokens := &tokenRecorder{}
	r, err := NewSessionRegistry(SessionRegistryConfig{APIKey: "key", IdleTimeout: 10 * time.Millisecond}, factory, tokens.source, nil)
	require.NoError(t, err)

	_, err = r.Acquire(context.Background(), &models.Identity{ID: "u1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	requireClosed(t, closed)
	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}
