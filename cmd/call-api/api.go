// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/service"
)

// CallsAPI serves the call service over HTTP.
type CallsAPI struct {
	service   *service.CallService
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

// NewCallsAPI creates a new CallsAPI. Watch connections re-send their snapshot every heartbeat.
// Watch upgrades are accepted from allowedOrigins; "*" allows any origin and an empty list
// allows same-origin requests only.
func NewCallsAPI(service *service.CallService, heartbeat time.Duration, allowedOrigins []string) *CallsAPI {
	if heartbeat <= 0 {
		heartbeat = defaultWatchHeartbeat
	}
	return &CallsAPI{
		service:   service,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

// checkOrigin accepts requests without an Origin header, same-origin requests and
// requests from one of the allowed origins.
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
	}
	_, allowAll := allowed["*"]

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		if _, ok := allowed[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusForError maps an error to the HTTP status code of its semantic type.
func statusForError(err error) int {
	if errors.Is(err, domain.ErrServiceUnavailable) {
		return http.StatusServiceUnavailable
	}
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeConflict:
		return http.StatusConflict
	case domain.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it as an errorResponse.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := statusForError(err)
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", logging.ErrKey, err, "status", code)
	} else {
		slog.DebugContext(ctx, "request rejected", logging.ErrKey, err, "status", code)
	}

	message := err.Error()
	if code == http.StatusInternalServerError {
		message = domain.ErrInternal.Error()
	}
	writeJSON(ctx, w, code, errorResponse{Code: strconv.Itoa(code), Message: message})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "error encoding response", logging.ErrKey, err)
	}
}

// bearerToken returns the Authorization header captured by the middleware.
// WebSocket clients that cannot set headers may pass the token as access_token.
func bearerToken(r *http.Request) string {
	if authorization, ok := middleware.AuthorizationFromContext(r.Context()); ok {
		return authorization
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

// Readyz checks if the service is able to take inbound requests.
func (a *CallsAPI) Readyz(w http.ResponseWriter, r *http.Request) {
	if a.service == nil || !a.service.ServiceReady() {
		writeError(r.Context(), w, domain.ErrServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("OK\n"))
}

// Livez checks if the service is alive.
func (a *CallsAPI) Livez(w http.ResponseWriter, _ *http.Request) {
	// This always returns as long as the service is still running. As this
	// endpoint is expected to be used as a Kubernetes liveness check, this
	// service must likewise self-detect non-recoverable errors and
	// self-terminate.
	_, _ = w.Write([]byte("OK\n"))
}
