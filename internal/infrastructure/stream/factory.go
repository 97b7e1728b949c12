// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package stream

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
)

// Factory builds connected backend clients.
type Factory struct {
	config Config
}

// Ensure that Factory implements domain.ClientFactory
var _ domain.ClientFactory = (*Factory)(nil)

// NewFactory creates a Factory sharing config across clients.
func NewFactory(config Config) *Factory {
	return &Factory{config: config.withDefaults()}
}

// NewClient builds a client and fetches its first token.
func (f *Factory) NewClient(ctx context.Context, opts domain.ClientOptions) (domain.CallClient, error) {
	if opts.APIKey == "" {
		return nil, domain.NewConfigurationError("backend client requires an API key", domain.ErrMissingAPIKey)
	}
	if opts.TokenProvider == nil {
		return nil, domain.NewConfigurationError("backend client requires a token provider")
	}
	if opts.User.ID == "" {
		return nil, domain.NewValidationError("backend client requires a user id")
	}

	client := NewClient(ctx, f.config, opts)
	if err := client.Connect(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
