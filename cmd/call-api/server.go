// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"expvar"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/concurrent"
)

// newHandler mounts the API routes and wraps them in the HTTP middleware.
func newHandler(api *CallsAPI) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", api.Livez)
	mux.HandleFunc("GET /readyz", api.Readyz)
	mux.HandleFunc("GET /calls", api.ListCalls)
	mux.HandleFunc("GET /calls/watch", api.WatchCalls)
	mux.HandleFunc("GET /calls/{id}", api.GetCall)
	mux.Handle("GET /debug/vars", expvar.Handler())

	var handler http.Handler = otelhttp.NewHandler(mux, "call-api")

	// Add HTTP middleware
	// Note: Order matters - RequestIDMiddleware should come first in the chain,
	// so it should be the last middleware added to the handler since it is executed in reverse order.
	handler = middleware.RequestLoggerMiddleware()(handler)
	handler = middleware.RequestIDMiddleware()(handler)
	handler = middleware.AuthorizationMiddleware()(handler)

	return handler
}

// setupHTTPServer configures and starts the HTTP server
func setupHTTPServer(flags flags, api *CallsAPI, gracefulCloseWG *sync.WaitGroup) *http.Server {
	addr := flags.listenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           newHandler(api),
		ReadHeaderTimeout: 3 * time.Second,
	}
	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Debug("starting http server, listening on port " + flags.Port)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http listener error")
			os.Exit(1)
		}
		// Because ErrServerClosed is *immediately* returned when Shutdown is
		// called, not when when Shutdown completes, this must not yet decrement
		// the wait group.
	}()

	return httpServer
}

// gracefulShutdown stops the HTTP server, drains NATS and releases every session client.
func gracefulShutdown(
	httpServer *http.Server,
	natsConn *nats.Conn,
	natsDispatcher *concurrent.Dispatcher,
	sessions *service.SessionRegistry,
	gracefulCloseWG *sync.WaitGroup,
	cancel context.CancelFunc,
) {
	slog.Info("shutting down call service")

	// Cancel the background context.
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	stops := []func() error{
		func() error {
			slog.With("addr", httpServer.Addr).Info("shutting down http server")
			defer gracefulCloseWG.Done()
			return httpServer.Shutdown(ctx)
		},
		func() error {
			return sessions.Close(ctx)
		},
	}
	if natsConn != nil && !natsConn.IsClosed() && !natsConn.IsDraining() {
		stops = append(stops, func() error {
			slog.Info("draining NATS connections")
			return natsConn.Drain()
		})
	}

	for _, err := range concurrent.NewWorkerPool(len(stops)).RunAll(ctx, stops...) {
		slog.With(logging.ErrKey, err).Error("error during graceful shutdown")
	}

	// Wait for the HTTP server and NATS connection to close.
	gracefulCloseWG.Wait()

	// The drained connection delivers nothing more, so in-flight handlers are the last jobs.
	natsDispatcher.Wait()

	slog.Info("graceful shutdown complete")
}
