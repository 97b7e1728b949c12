// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
)

// DefaultTokenLeeway is how long before its exp claim a cached token is replaced.
const DefaultTokenLeeway = time.Minute

// tokenType is the oauth2 token type of backend user tokens.
const tokenType = "jwt"

// providerTokenSource adapts a domain.TokenProvider to oauth2.TokenSource.
type providerTokenSource struct {
	ctx      context.Context
	provider domain.TokenProvider
	leeway   time.Duration
}

// NewTokenSource returns a token source calling provider only when the cached token is
// missing or about to expire. Tokens without a readable exp claim are never reused.
func NewTokenSource(ctx context.Context, provider domain.TokenProvider, leeway time.Duration) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &providerTokenSource{
		// Tokens are refreshed long after the building request has returned.
		ctx:      context.WithoutCancel(ctx),
		provider: provider,
		leeway:   leeway,
	})
}

// Token calls the provider and reads the expiry from the token's claims.
func (s *providerTokenSource) Token() (*oauth2.Token, error) {
	if s.provider == nil {
		return nil, errors.New("no token provider registered")
	}

	raw, err := s.provider(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("token provider failed: %w", err)
	}
	if raw == "" {
		return nil, errors.New("token provider returned an empty token")
	}

	token := &oauth2.Token{AccessToken: raw, TokenType: tokenType}
	if expiry, ok := tokenExpiry(raw); ok {
		token.Expiry = expiry.Add(-s.leeway)
	} else {
		// A zero expiry means "never expires" to oauth2; force a refetch instead.
		token.Expiry = time.Now().Add(-time.Second)
	}
	return token, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the backend verifies it.
func tokenExpiry(raw string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
