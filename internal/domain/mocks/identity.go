// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
)

// MockIdentityParser implements domain.IdentityParser for testing
type MockIdentityParser struct {
	mock.Mock
}

func (m *MockIdentityParser) ParseIdentity(ctx context.Context, bearerToken string) (*models.Identity, error) {
	args := m.Called(ctx, bearerToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

// MockProfileProvider implements domain.ProfileProvider for testing
type MockProfileProvider struct {
	mock.Mock
}

func (m *MockProfileProvider) Profile(ctx context.Context, accessToken string) (*models.Identity, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

// MockClientEventSender implements domain.ClientEventSender for testing
type MockClientEventSender struct {
	mock.Mock
}

func (m *MockClientEventSender) SendClientReady(ctx context.Context, event models.ClientReadyEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
