// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
)

// IdentityParser resolves a bearer token issued by the identity provider to the user it belongs to.
type IdentityParser interface {
	ParseIdentity(ctx context.Context, bearerToken string) (*models.Identity, error)
}

// ProfileProvider looks up the display profile (username, avatar) of the user owning an access token.
type ProfileProvider interface {
	Profile(ctx context.Context, accessToken string) (*models.Identity, error)
}
