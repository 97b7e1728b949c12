// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"time"
)

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// ResolveTimeout bounds how long a request waits for a call client and its lookup
	// before the current, possibly still loading, state is returned.
	ResolveTimeout time.Duration
	// SessionIdleTimeout is how long a session may go unused before its client is released.
	SessionIdleTimeout time.Duration
	// ProfileCacheTTL is how long an identity profile lookup is reused.
	ProfileCacheTTL time.Duration
}

const (
	defaultResolveTimeout     = 10 * time.Second
	defaultSessionIdleTimeout = 15 * time.Minute
	defaultProfileCacheTTL    = 5 * time.Minute
)

// withDefaults fills in zero durations.
func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = defaultResolveTimeout
	}
	if c.SessionIdleTimeout <= 0 {
		c.SessionIdleTimeout = defaultSessionIdleTimeout
	}
	if c.ProfileCacheTTL <= 0 {
		c.ProfileCacheTTL = defaultProfileCacheTTL
	}
	return c
}
