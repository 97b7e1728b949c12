// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/infrastructure/stream"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/infrastructure/token"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/concurrent"
)

// gracefulShutdownSeconds should be higher than NATS client request timeout, and lower than the pod or job's
// graceful termination period.
const gracefulShutdownSeconds = 25

// setupJWTAuth configures JWT authentication for the service
func setupJWTAuth(env environment) (*auth.JWTAuth, error) {
	jwtAuthConfig := auth.JWTAuthConfig{
		JWKSURL:            env.Auth.JWKSURL,
		Issuer:             env.Auth.Issuer,
		Audience:           env.Auth.Audience,
		MockLocalPrincipal: env.Auth.MockLocalPrincipal,
	}
	return auth.NewJWTAuth(jwtAuthConfig)
}

// setupProfileClient configures identity profile enrichment. It is optional and returns nil
// when no Auth0 tenant is configured.
func setupProfileClient(ctx context.Context, env environment) (domain.ProfileProvider, error) {
	if env.Auth.Auth0Domain == "" || env.Auth.Auth0ClientID == "" {
		slog.InfoContext(ctx, "identity profile enrichment is disabled")
		return nil, nil
	}
	return auth.NewProfileClient(ctx, env.Auth.Auth0Domain, env.Auth.Auth0ClientID)
}

// setupSessions wires the backend token issuer and client factory into a session registry.
func setupSessions(env environment, serviceConfig service.ServiceConfig, events domain.ClientEventSender) (*service.SessionRegistry, error) {
	issuer, err := token.NewIssuer(env.Stream.APISecret, env.Stream.TokenTTL)
	if err != nil {
		return nil, err
	}

	factory := stream.NewFactory(stream.Config{
		BaseURL: env.Stream.BaseURL,
	})

	return service.NewSessionRegistry(
		service.SessionRegistryConfig{
			APIKey:      env.Stream.APIKey,
			IdleTimeout: serviceConfig.SessionIdleTimeout,
		},
		factory,
		issuer.ProviderFor,
		events,
	)
}

// setupNATS creates a NATS connection. The connection is optional and nil is returned
// when NATS_URL is not set.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	if env.NATSURL == "" {
		slog.InfoContext(ctx, "NATS_URL is not set, NATS transport is disabled")
		return nil, nil
	}

	gracefulCloseWG.Add(1)
	natsConn, err := nats.Connect(
		env.NATSURL,
		nats.Name("lfx-v2-call-service"),
		nats.DrainTimeout(gracefulShutdownSeconds*time.Second),
		nats.MaxReconnects(-1),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.With("nats_url", env.NATSURL).Info("NATS connection established")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				slog.With(logging.ErrKey, err, "subject", s.Subject, "queue", s.Queue).Error("async NATS error")
			} else {
				slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// Expected during graceful shutdown.
				slog.Info("NATS connection closed gracefully")
			} else {
				// Otherwise, this is an unexpected close, signal the service to shut down.
				slog.Error("NATS connection closed unexpectedly", logging.PriorityCritical())
				done <- os.Interrupt
			}
			gracefulCloseWG.Done()
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, domain.NewUnavailableError("error creating NATS client", err)
	}

	return natsConn, nil
}

// createNatsSubscriptions subscribes handler to the call service request subjects.
// Messages are handled on dispatcher so a slow lookup does not hold up the subscription.
func createNatsSubscriptions(ctx context.Context, handler domain.MessageHandler, natsConn *nats.Conn, dispatcher *concurrent.Dispatcher) error {
	if natsConn == nil {
		return nil
	}

	subjects := []string{
		models.GetCallSubject,
		models.ListCallsSubject,
	}
	for _, subject := range subjects {
		_, err := natsConn.QueueSubscribe(subject, models.CallsAPIQueue, func(msg *nats.Msg) {
			dispatcher.Go(func() {
				handler.HandleMessage(ctx, messaging.NewNatsMessage(msg))
			})
		})
		if err != nil {
			return domain.NewUnavailableError("error creating NATS subscription for "+subject, err)
		}
		slog.With("subject", subject, "queue", models.CallsAPIQueue).Debug("subscribed to NATS subject")
	}

	return nil
}
