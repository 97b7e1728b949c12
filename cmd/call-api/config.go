// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/constants"
)

const (
	defaultWatchHeartbeat = 30 * time.Second
	defaultNATSWorkers    = 16
)

// flags are the command line flags for the call service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the call service.
type environment struct {
	Port   string
	Stream streamConfig
	Auth   authConfig

	NATSURL     string
	NATSWorkers int

	AllowedOrigins []string

	ResolveTimeout     time.Duration
	SessionIdleTimeout time.Duration
	ProfileCacheTTL    time.Duration
	WatchHeartbeat     time.Duration
}

// streamConfig holds the calling backend configuration
type streamConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
	TokenTTL  time.Duration
}

// authConfig holds the identity provider configuration
type authConfig struct {
	JWKSURL            string
	Issuer             string
	Audience           string
	MockLocalPrincipal string
	Auth0Domain        string
	Auth0ClientID      string
}

// parseFlags parses command line flags for the call service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv parses environment variables for the call service
func parseEnv() environment {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return environment{
		Port:               port,
		Stream:             parseStreamConfig(),
		Auth:               parseAuthConfig(),
		NATSURL:            os.Getenv("NATS_URL"),
		NATSWorkers:        parsePositiveInt("NATS_HANDLER_WORKERS", defaultNATSWorkers),
		AllowedOrigins:     parseList("ALLOWED_ORIGINS"),
		ResolveTimeout:     parseDuration("RESOLVE_TIMEOUT", 0),
		SessionIdleTimeout: parseDuration("SESSION_IDLE_TIMEOUT", 0),
		ProfileCacheTTL:    parseDuration("PROFILE_CACHE_TTL", 0),
		WatchHeartbeat:     parseDuration("WATCH_HEARTBEAT", defaultWatchHeartbeat),
	}
}

// parseStreamConfig parses the calling backend configuration from environment variables.
// The API key and secret are required.
func parseStreamConfig() streamConfig {
	apiKey := os.Getenv("STREAM_API_KEY")
	if apiKey == "" {
		slog.Error("STREAM_API_KEY environment variable is required but not set")
		os.Exit(1)
	}

	apiSecret := os.Getenv("STREAM_API_SECRET")
	if apiSecret == "" {
		slog.Error("STREAM_API_SECRET environment variable is required but not set")
		os.Exit(1)
	}

	baseURL := os.Getenv("STREAM_BASE_URL")
	if baseURL == "" {
		baseURL = constants.DefaultStreamBaseURL
	}

	return streamConfig{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
		TokenTTL:  parseDuration("STREAM_TOKEN_TTL", constants.DefaultStreamTokenTTL),
	}
}

// parseAuthConfig parses the identity provider configuration from environment variables
func parseAuthConfig() authConfig {
	return authConfig{
		JWKSURL:            os.Getenv("JWKS_URL"),
		Issuer:             os.Getenv("JWT_ISSUER"),
		Audience:           os.Getenv("JWT_AUDIENCE"),
		MockLocalPrincipal: os.Getenv("JWT_AUTH_DISABLED_MOCK_LOCAL_PRINCIPAL"),
		Auth0Domain:        os.Getenv("AUTH0_DOMAIN"),
		Auth0ClientID:      os.Getenv("AUTH0_CLIENT_ID"),
	}
}

// parseDuration reads a Go duration from an environment variable, falling back on
// invalid or missing values.
func parseDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.With(logging.ErrKey, err, "name", name, "value", raw).Warn("invalid duration provided, using default")
		return fallback
	}
	return d
}

// parsePositiveInt reads a positive integer from an environment variable, falling back on
// invalid or missing values.
func parsePositiveInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		slog.With(logging.ErrKey, err, "name", name, "value", raw).Warn("invalid integer provided, using default")
		return fallback
	}
	return n
}

// parseList reads a comma separated list from an environment variable, skipping blank entries.
func parseList(name string) []string {
	var values []string
	for _, v := range strings.Split(os.Getenv(name), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// listenAddr returns the address the HTTP server binds to.
func (f flags) listenAddr() string {
	if f.Bind == "*" {
		return ":" + f.Port
	}
	return f.Bind + ":" + f.Port
}
