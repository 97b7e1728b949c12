// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/utils"
)

const (
	// defaultIssuer is the issuer of session tokens when none is configured.
	defaultIssuer = "heimdall"
	// defaultAudience is the audience session tokens must be minted for.
	defaultAudience = "lfx-v2-call-service"
	// defaultJWKSURL is the JWKS endpoint of the identity provider.
	defaultJWKSURL = "http://heimdall:4457/.well-known/jwks"
	// defaultSignatureAlgorithm is the algorithm session tokens are signed with.
	defaultSignatureAlgorithm = validator.PS256

	jwksCacheTTL   = 5 * time.Minute
	allowedSkew    = 30 * time.Second
	bearerPrefix   = "bearer "
	mockModeNotice = "JWT validation is disabled, every request runs as the mock principal"
)

// SessionClaims are the display claims carried by identity provider session tokens.
type SessionClaims struct {
	Principal         string `json:"principal,omitempty"`
	Username          string `json:"username,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Nickname          string `json:"nickname,omitempty"`
	Name              string `json:"name,omitempty"`
	ImageURL          string `json:"image_url,omitempty"`
	Picture           string `json:"picture,omitempty"`
}

// Validate checks that an avatar reference, when present, is an absolute URL.
func (c *SessionClaims) Validate(ctx context.Context) error {
	image := c.image()
	if image == "" {
		return nil
	}
	u, err := url.Parse(image)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.New("image_url must be an absolute URL")
	}
	return nil
}

func (c *SessionClaims) username() string {
	return utils.Coalesce(c.Username, c.PreferredUsername, c.Nickname, c.Principal, c.Name)
}

func (c *SessionClaims) image() string {
	return utils.Coalesce(c.ImageURL, c.Picture)
}

// JWTAuthConfig configures session token validation.
type JWTAuthConfig struct {
	JWKSURL            string
	Issuer             string
	Audience           string
	SignatureAlgorithm string
	// MockLocalPrincipal disables validation and resolves every token to this user. Local development only.
	MockLocalPrincipal string
}

// JWTAuth validates identity provider session tokens.
type JWTAuth struct {
	validator *validator.Validator
	config    JWTAuthConfig
}

// Ensure that JWTAuth implements domain.IdentityParser
var _ domain.IdentityParser = (*JWTAuth)(nil)

// NewJWTAuth creates a JWTAuth, filling in defaults for empty settings.
func NewJWTAuth(config JWTAuthConfig) (*JWTAuth, error) {
	if config.JWKSURL == "" {
		config.JWKSURL = defaultJWKSURL
	}
	if config.Issuer == "" {
		config.Issuer = defaultIssuer
	}
	if config.Audience == "" {
		config.Audience = defaultAudience
	}
	if config.SignatureAlgorithm == "" {
		config.SignatureAlgorithm = string(defaultSignatureAlgorithm)
	}

	jwksURL, err := url.Parse(config.JWKSURL)
	if err != nil {
		return nil, domain.NewConfigurationError("invalid JWKS URL", err)
	}
	issuerURL, err := url.Parse(config.Issuer)
	if err != nil {
		return nil, domain.NewConfigurationError("invalid JWT issuer", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, jwksCacheTTL, jwks.WithCustomJWKSURI(jwksURL))

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.SignatureAlgorithm(config.SignatureAlgorithm),
		config.Issuer,
		[]string{config.Audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &SessionClaims{}
		}),
		validator.WithAllowedClockSkew(allowedSkew),
	)
	if err != nil {
		return nil, domain.NewConfigurationError("failed to set up JWT validator", err)
	}

	if config.MockLocalPrincipal != "" {
		slog.Warn(mockModeNotice, "principal", config.MockLocalPrincipal)
	}

	return &JWTAuth{
		validator: jwtValidator,
		config:    config,
	}, nil
}

// ParseIdentity validates a session token and returns the identity it carries.
// The token may be prefixed with "Bearer ".
func (j *JWTAuth) ParseIdentity(ctx context.Context, token string) (*models.Identity, error) {
	if j.config.MockLocalPrincipal != "" {
		slog.DebugContext(ctx, "parsing identity in mock mode", "principal", j.config.MockLocalPrincipal)
		return &models.Identity{ID: j.config.MockLocalPrincipal, Username: j.config.MockLocalPrincipal}, nil
	}

	if j.validator == nil {
		return nil, domain.NewUnavailableError("JWT validator is not set up")
	}

	token = stripBearer(token)
	if token == "" {
		return nil, domain.NewUnauthorizedError("missing session token", domain.ErrUnauthorized)
	}

	parsed, err := j.validator.ValidateToken(ctx, token)
	if err != nil {
		slog.DebugContext(ctx, "session token rejected", logging.ErrKey, err)
		return nil, domain.NewUnauthorizedError("invalid session token", err)
	}

	claims, ok := parsed.(*validator.ValidatedClaims)
	if !ok {
		return nil, domain.NewUnauthorizedError("unexpected session token claims", domain.ErrUnauthorized)
	}
	if claims.RegisteredClaims.Subject == "" {
		return nil, domain.NewUnauthorizedError("session token has no subject", domain.ErrUnauthorized)
	}

	identity := &models.Identity{ID: claims.RegisteredClaims.Subject}
	if custom, ok := claims.CustomClaims.(*SessionClaims); ok && custom != nil {
		identity.Username = custom.username()
		identity.ImageURL = custom.image()
	}

	return identity, nil
}

// stripBearer removes a case-insensitive "Bearer " prefix and surrounding spaces.
func stripBearer(token string) string {
	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		token = token[len(bearerPrefix):]
	}
	return strings.TrimSpace(token)
}
