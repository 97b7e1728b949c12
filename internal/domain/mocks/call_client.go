// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
)

// MockCallClient implements domain.CallClient for testing
type MockCallClient struct {
	mock.Mock
}

func (m *MockCallClient) QueryCalls(ctx context.Context, req *models.QueryCallsRequest) (*models.QueryCallsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueryCallsResponse), args.Error(1)
}

func (m *MockCallClient) User() models.CallUser {
	args := m.Called()
	return args.Get(0).(models.CallUser)
}

func (m *MockCallClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockClientFactory implements domain.ClientFactory for testing
type MockClientFactory struct {
	mock.Mock
}

func (m *MockClientFactory) NewClient(ctx context.Context, opts domain.ClientOptions) (domain.CallClient, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.CallClient), args.Error(1)
}
