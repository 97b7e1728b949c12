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
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/utils"
)

// maxCachedProfiles is the cache size above which expired profiles are evicted.
const maxCachedProfiles = 1024

type cachedProfile struct {
	profile   models.Identity
	expiresAt time.Time
}

// AuthService resolves bearer tokens to identities.
type AuthService struct {
	identities domain.IdentityParser
	profiles   domain.ProfileProvider
	profileTTL time.Duration
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cachedProfile
}

// NewAuthService creates an AuthService. profiles is optional; when set it fills in a
// username or avatar the token claims lack.
func NewAuthService(identities domain.IdentityParser, profiles domain.ProfileProvider, config ServiceConfig) *AuthService {
	return &AuthService{
		identities: identities,
		profiles:   profiles,
		profileTTL: config.withDefaults().ProfileCacheTTL,
		now:        time.Now,
		cache:      make(map[string]cachedProfile),
	}
}

// ServiceReady checks if the service is ready for use.
func (s *AuthService) ServiceReady() bool {
	return s.identities != nil
}

// ParseIdentity resolves the identity behind a bearer token.
func (s *AuthService) ParseIdentity(ctx context.Context, bearerToken string) (*models.Identity, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("auth service not ready")
	}

	identity, err := s.identities.ParseIdentity(ctx, bearerToken)
	if err != nil {
		return nil, err
	}
	if !identity.Ready() {
		return nil, domain.NewUnauthorizedError("token does not identify a user", domain.ErrUnauthorized)
	}

	if s.profiles == nil || (identity.Username != "" && identity.ImageURL != "") {
		return identity, nil
	}

	profile, ok := s.profile(ctx, identity.ID, bearerToken)
	if !ok {
		return identity, nil
	}

	return &models.Identity{
		ID:       identity.ID,
		Username: utils.Coalesce(identity.Username, profile.Username),
		ImageURL: utils.Coalesce(identity.ImageURL, profile.ImageURL),
	}, nil
}

// profile returns the cached profile of userID, looking it up when missing or expired.
func (s *AuthService) profile(ctx context.Context, userID, bearerToken string) (models.Identity, bool) {
	now := s.now()

	s.mu.Lock()
	cached, ok := s.cache[userID]
	s.mu.Unlock()
	if ok && now.Before(cached.expiresAt) {
		return cached.profile, true
	}

	profile, err := s.profiles.Profile(ctx, bearerToken)
	if err != nil {
		slog.WarnContext(ctx, "error looking up identity profile, using token claims",
			logging.ErrKey, err,
			"user_id", userID,
		)
		if ok {
			return cached.profile, true
		}
		return models.Identity{}, false
	}
	if profile == nil || (profile.ID != "" && profile.ID != userID) {
		slog.WarnContext(ctx, "identity profile does not match token subject", "user_id", userID)
		return models.Identity{}, false
	}

	s.mu.Lock()
	if len(s.cache) >= maxCachedProfiles {
		for id, entry := range s.cache {
			if !now.Before(entry.expiresAt) {
				delete(s.cache, id)
			}
		}
	}
	s.cache[userID] = cachedProfile{profile: *profile, expiresAt: now.Add(s.profileTTL)}
	s.mu.Unlock()

	return *profile, true
}
