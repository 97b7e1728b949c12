// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the call service API that resolves calls from the calling backend over
// HTTP and WebSocket, and answers the same lookups over NATS.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/utils"
)

func main() {
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry SDK")
		os.Exit(1)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry SDK")
		}
	}()

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}
	var events domain.ClientEventSender
	if natsConn != nil {
		events = messaging.NewMessageBuilder(natsConn)
	}

	serviceConfig := service.ServiceConfig{
		ResolveTimeout:     env.ResolveTimeout,
		SessionIdleTimeout: env.SessionIdleTimeout,
		ProfileCacheTTL:    env.ProfileCacheTTL,
	}

	// Build the identity and session layers. A configuration error here is fatal.
	var (
		jwtAuth  *auth.JWTAuth
		profiles domain.ProfileProvider
		sessions *service.SessionRegistry
	)
	err = concurrent.NewWorkerPool(3).Run(ctx,
		func() (err error) {
			jwtAuth, err = setupJWTAuth(env)
			return err
		},
		func() (err error) {
			profiles, err = setupProfileClient(ctx, env)
			return err
		},
		func() (err error) {
			sessions, err = setupSessions(env, serviceConfig, events)
			return err
		},
	)
	if err != nil {
		slog.With(logging.ErrKey, err, "fatal", domain.IsFatal(err)).Error("error setting up call service")
		os.Exit(1)
	}

	go sessions.Run(ctx)

	authService := service.NewAuthService(jwtAuth, profiles, serviceConfig)
	callService := service.NewCallService(authService, sessions, serviceConfig)
	callHandler := handlers.NewCallHandler(callService)

	api := NewCallsAPI(callService, env.WatchHeartbeat, env.AllowedOrigins)
	httpServer := setupHTTPServer(flags, api, &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	natsDispatcher := concurrent.NewDispatcher(env.NATSWorkers)
	err = createNatsSubscriptions(ctx, callHandler, natsConn, natsDispatcher)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, natsConn, natsDispatcher, sessions, &gracefulCloseWG, cancel)
}
