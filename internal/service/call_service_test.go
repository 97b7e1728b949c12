// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
)

type callServiceFixture struct {
	service *CallService
	parser  *mocks.MockIdentityParser
	factory *mocks.MockClientFactory
	client  *mocks.MockCallClient
}

func setupCallService(t *testing.T, config ServiceConfig) *callServiceFixture {
	t.Helper()

	parser := &mocks.MockIdentityParser{}
	parser.On("ParseIdentity", mock.Anything, "token-u1").Return(&models.Identity{ID: "u1", Username: "ada"}, nil)
	parser.On("ParseIdentity", mock.Anything, "bad-token").
		Return(nil, domain.NewUnauthorizedError("invalid token", domain.ErrUnauthorized))

	client := &mocks.MockCallClient{}
	client.On("Close").Return(nil).Maybe()
	factory := &mocks.MockClientFactory{}
	factory.On("NewClient", mock.Anything, mock.Anything).Return(client, nil)

	tokens := &tokenRecorder{}
	sessions, err := NewSessionRegistry(SessionRegistryConfig{APIKey: "key"}, factory, tokens.source, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close(context.Background()) })

	return &callServiceFixture{
		service: NewCallService(NewAuthService(parser, nil, config), sessions, config),
		parser:  parser,
		factory: factory,
		client:  client,
	}
}

func TestCallService_ServiceReady(t *testing.T) {
	assert.False(t, NewCallService(nil, nil, ServiceConfig{}).ServiceReady())
	assert.False(t, NewCallService(NewAuthService(nil, nil, ServiceConfig{}), nil, ServiceConfig{}).ServiceReady())
	assert.True(t, setupCallService(t, ServiceConfig{}).service.ServiceReady())

	_, err := NewCallService(nil, nil, ServiceConfig{}).GetCall(context.Background(), "token-u1", "c42")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestCallService_GetCall(t *testing.T) {
	c42 := callStartingAt("c42", time.Now().Add(time.Hour))

	t.Run("resolves the call", func(t *testing.T) {
		f := setupCallService(t, ServiceConfig{})
		f.client.On("QueryCalls", mock.Anything, models.NewCallsByIDQuery("c42")).
			Return(&models.QueryCallsResponse{Calls: []*models.Call{c42}}, nil).Once()

		state, err := f.service.GetCall(context.Background(), "token-u1", " c42 ", "c42")
		require.NoError(t, err)
		assert.Equal(t, CallState{Call: c42}, state)
		f.client.AssertExpectations(t)
	})

	t.Run("query failure resolves to no call", func(t *testing.T) {
		f := setupCallService(t, ServiceConfig{})
		f.client.On("QueryCalls", mock.Anything, mock.Anything).
			Return(nil, domain.NewInternalError("backend failure")).Once()

		state, err := f.service.GetCall(context.Background(), "token-u1", "c42")
		require.NoError(t, err)
		assert.Equal(t, CallState{}, state)
	})

	t.Run("slow lookup reports loading", func(t *testing.T) {
		f := setupCallService(t, ServiceConfig{ResolveTimeout: 20 * time.Millisecond})
		f.client.On("QueryCalls", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return(nil, context.Canceled).Once()

		state, err := f.service.GetCall(context.Background(), "token-u1", "c42")
		require.NoError(t, err)
		assert.Equal(t, CallState{IsLoading: true}, state)
	})

	t.Run("missing id", func(t *testing.T) {
		f := setupCallService(t, ServiceConfig{})

		_, err := f.service.GetCall(context.Background(), "token-u1", " ", "")
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
		f.parser.AssertNotCalled(t, "ParseIdentity", mock.Anything, mock.Anything)
	})

	t.Run("invalid token", func(t *testing.T) {
		f := setupCallService(t, ServiceConfig{})

		_, err := f.service.GetCall(context.Background(), "bad-token", "c42")
		assert.Equal(t, domain.ErrorTypeUnauthorized, domain.GetErrorType(err))
		f.factory.AssertNotCalled(t, "NewClient", mock.Anything, mock.Anything)
	})
}

func TestCallService_GetCallFollowsReplacedClient(t *testing.T) {
	c42 := callStartingAt("c42", time.Now().Add(time.Hour))
	ada := &models.Identity{ID: "u1", Username: "ada"}

	parser := &mocks.MockIdentityParser{}
	parser.On("ParseIdentity", mock.Anything, "token-u1").Return(ada, nil)

	first := &mocks.MockCallClient{}
	second := &mocks.MockCallClient{}
	second.On("Close").Return(nil).Maybe()
	factory := &mocks.MockClientFactory{}
	factory.On("NewClient", mock.Anything, mock.Anything).Return(first, nil).Once()
	factory.On("NewClient", mock.Anything, mock.Anything).Return(second, nil).Once()

	sessions, err := NewSessionRegistry(SessionRegistryConfig{APIKey: "key"}, factory, (&tokenRecorder{}).source, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close(context.Background()) })

	// While the first lookup runs, the same user comes back with a new avatar,
	// which replaces and closes the client the lookup is using.
	closed := make(chan struct{})
	first.On("Close").Run(func(mock.Arguments) { close(closed) }).Return(nil).Once()
	first.On("QueryCalls", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, err := sessions.Acquire(ctx, &models.Identity{ID: "u1", Username: "ada", ImageURL: "https://img.example.org/ada.png"})
			require.NoError(t, err)
			<-closed
		}).
		Return(nil, domain.NewUnavailableError("client closed", domain.ErrClientClosed)).Once()
	second.On("QueryCalls", mock.Anything, models.NewCallsByIDQuery("c42")).
		Return(&models.QueryCallsResponse{Calls: []*models.Call{c42}}, nil).Once()

	service := NewCallService(NewAuthService(parser, nil, ServiceConfig{}), sessions, ServiceConfig{})

	state, err := service.GetCall(context.Background(), "token-u1", "c42")
	require.NoError(t, err)
	assert.Equal(t, CallState{Call: c42}, state)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestCallService_ListCalls(t *testing.T) {
	f := setupCallService(t, ServiceConfig{})
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time { return now }

	yesterday := callStartingAt("A", now.Add(-24*time.Hour))
	tomorrow := callStartingAt("B", now.Add(24*time.Hour))
	f.client.On("QueryCalls", mock.Anything, models.NewUserCallsQuery("u1")).
		Return(&models.QueryCallsResponse{Calls: []*models.Call{yesterday, tomorrow}}, nil).Once()

	result, err := f.service.ListCalls(context.Background(), "token-u1")
	require.NoError(t, err)

	assert.Equal(t, CallSetResult{
		EndedCalls:     []*models.Call{yesterday},
		UpcomingCalls:  []*models.Call{tomorrow},
		CallRecordings: []*models.Call{yesterday, tomorrow},
	}, result)
	f.client.AssertExpectations(t)
}

func TestCallService_SessionIsReused(t *testing.T) {
	f := setupCallService(t, ServiceConfig{})
	f.client.On("QueryCalls", mock.Anything, mock.Anything).Return(&models.QueryCallsResponse{}, nil)

	for range 3 {
		_, err := f.service.ListCalls(context.Background(), "token-u1")
		require.NoError(t, err)
	}

	f.factory.AssertNumberOfCalls(t, "NewClient", 1)
	assert.Equal(t, 1, f.service.Sessions.Len())
}

func TestCallService_WatchCall(t *testing.T) {
	f := setupCallService(t, ServiceConfig{})
	c42 := callStartingAt("c42", time.Now().Add(time.Hour))
	f.client.On("QueryCalls", mock.Anything, models.NewCallsByIDQuery("c42")).
		Return(&models.QueryCallsResponse{Calls: []*models.Call{c42}}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retriever, session, err := f.service.WatchCall(ctx, "token-u1", "c42")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID())

	assert.Eventually(t, func() bool {
		return retriever.State() == CallState{Call: c42}
	}, time.Second, 5*time.Millisecond)
}

func TestCallService_WatchCalls(t *testing.T) {
	f := setupCallService(t, ServiceConfig{})
	now := time.Now()
	upcoming := callStartingAt("B", now.Add(time.Hour))
	f.client.On("QueryCalls", mock.Anything, models.NewUserCallsQuery("u1")).
		Return(&models.QueryCallsResponse{Calls: []*models.Call{upcoming}}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	retriever, _, err := f.service.WatchCalls(ctx, "token-u1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		result := retriever.Result(now)
		return !result.IsLoading && len(result.UpcomingCalls) == 1
	}, time.Second, 5*time.Millisecond)

	// Cancelling the watch closes the retriever.
	cancel()
	assert.Eventually(t, func() bool {
		return retriever.Await(context.Background()) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestNormalizeIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeIDs([]string{" a", "", "b", "a ", "  "}))
	assert.Empty(t, normalizeIDs(nil))
}
