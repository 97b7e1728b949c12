// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package auth

import (
	"context"

	"github.com/auth0/go-auth0/authentication"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/utils"
)

// userInfoFunc fetches the OIDC user info of an access token.
type userInfoFunc func(ctx context.Context, accessToken string) (*authentication.UserInfoResponse, error)

// ProfileClient looks up display profiles on the identity provider's user info endpoint.
type ProfileClient struct {
	userInfo userInfoFunc
}

// Ensure that ProfileClient implements domain.ProfileProvider
var _ domain.ProfileProvider = (*ProfileClient)(nil)

// NewProfileClient creates a ProfileClient for an Auth0 tenant domain.
func NewProfileClient(ctx context.Context, tenantDomain, clientID string) (*ProfileClient, error) {
	if tenantDomain == "" {
		return nil, domain.NewConfigurationError("profile lookups require the identity provider domain")
	}

	var opts []authentication.Option
	if clientID != "" {
		opts = append(opts, authentication.WithClientID(clientID))
	}

	api, err := authentication.New(ctx, tenantDomain, opts...)
	if err != nil {
		return nil, domain.NewConfigurationError("failed to set up identity provider client", err)
	}

	return &ProfileClient{
		userInfo: func(ctx context.Context, accessToken string) (*authentication.UserInfoResponse, error) {
			return api.UserInfo(ctx, accessToken)
		},
	}, nil
}

// Profile returns the identity described by the user info of accessToken.
func (p *ProfileClient) Profile(ctx context.Context, accessToken string) (*models.Identity, error) {
	accessToken = stripBearer(accessToken)
	if accessToken == "" {
		return nil, domain.NewUnauthorizedError("missing access token", domain.ErrUnauthorized)
	}

	info, err := p.userInfo(ctx, accessToken)
	if err != nil {
		return nil, domain.NewUnavailableError("failed to load user info", err)
	}
	if info == nil {
		return nil, domain.NewNotFoundError("user info is empty")
	}

	return &models.Identity{
		ID:       info.Sub,
		Username: utils.Coalesce(info.PreferredUsername, info.Nickname, info.Name),
		ImageURL: info.Picture,
	}, nil
}
