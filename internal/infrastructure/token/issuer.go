// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package token signs calling backend user tokens with the backend API secret.
package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/constants"
)

// issuedAtSkew backdates iat so backends with a slightly late clock accept fresh tokens.
const issuedAtSkew = 60 * time.Second

// Issuer signs HS256 user tokens.
type Issuer struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

// NewIssuer creates an Issuer. A missing secret is a configuration error.
// A non-positive validity falls back to constants.DefaultStreamTokenTTL.
func NewIssuer(secret string, validity time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, domain.NewConfigurationError("token issuer requires the backend API secret", domain.ErrMissingAPISecret)
	}
	if validity <= 0 {
		validity = constants.DefaultStreamTokenTTL
	}
	return &Issuer{
		secret:   []byte(secret),
		validity: validity,
		now:      time.Now,
	}, nil
}

// Issue signs a token for userID.
func (i *Issuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", domain.NewValidationError("user id is required to issue a token")
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Add(-issuedAtSkew).Unix(),
		"exp":     now.Add(i.validity).Unix(),
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", domain.NewInternalError("failed to sign user token", err)
	}
	return signed, nil
}

// ProviderFor returns a token provider bound to userID.
func (i *Issuer) ProviderFor(userID string) domain.TokenProvider {
	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return i.Issue(userID)
	}
}
