// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/constants"
)

// tracerName is the instrumentation name for the stream package.
const tracerName = "github.com/linuxfoundation/lfx-v2-call-service/internal/infrastructure/stream"

const (
	// DefaultClientTimeout is the default HTTP client timeout for backend requests
	DefaultClientTimeout = 30 * time.Second
	// Default retry configuration
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 500 * time.Millisecond
	DefaultMaxBackoff        = 10 * time.Second
	DefaultBackoffMultiplier = 2.0

	queryCallsPath = "/video/calls"
	clientName     = "lfx-v2-call-service"
)

// Config holds the configuration shared by every client.
type Config struct {
	// Optional: override base URL for testing
	BaseURL string
	// Optional: override timeout for HTTP requests
	Timeout time.Duration
	// Optional: how long before its exp claim a token is refreshed
	TokenLeeway time.Duration
	// Optional: retry configuration
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Optional: transport to wrap, http.DefaultTransport when nil
	Transport http.RoundTripper
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = constants.DefaultStreamBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultClientTimeout
	}
	if c.TokenLeeway == 0 {
		c.TokenLeeway = DefaultTokenLeeway
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if c.Transport == nil {
		c.Transport = http.DefaultTransport
	}
	return c
}

// Client is a calling backend client connected as one user.
type Client struct {
	httpClient *http.Client
	config     Config
	apiKey     string
	user       models.CallUser
	tokens     oauth2.TokenSource
	closed     atomic.Bool
}

// Ensure that Client implements domain.CallClient
var _ domain.CallClient = (*Client)(nil)

// NewClient creates a client for opts.User. It does not contact the backend.
func NewClient(ctx context.Context, config Config, opts domain.ClientOptions) *Client {
	config = config.withDefaults()

	return &Client{
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(config.Transport),
		},
		config: config,
		apiKey: opts.APIKey,
		user:   opts.User,
		tokens: NewTokenSource(ctx, opts.TokenProvider, config.TokenLeeway),
	}
}

// Connect fetches the first user token so a misconfigured secret fails at build time.
func (c *Client) Connect(ctx context.Context) error {
	if _, err := c.tokens.Token(); err != nil {
		slog.ErrorContext(ctx, "error obtaining backend token", logging.ErrKey, err)
		return domain.NewUnavailableError("failed to obtain backend token", err)
	}
	return nil
}

// User returns the user the client is connected as.
func (c *Client) User() models.CallUser {
	return c.user
}

// Close releases the client's idle connections. Queries fail afterwards.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

// QueryCalls runs a call query against the backend.
func (c *Client) QueryCalls(ctx context.Context, req *models.QueryCallsRequest) (*models.QueryCallsResponse, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "stream.query_calls",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("stream.operation", "query_calls"),
			attribute.String("stream.user_id", c.user.ID),
		),
	)
	defer span.End()

	if c.closed.Load() {
		err := domain.NewUnavailableError("call client is closed", domain.ErrClientClosed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if req == nil {
		req = &models.QueryCallsRequest{}
	}

	resp, err := c.doRequest(ctx, http.MethodPost, queryCallsPath, newQueryCallsBody(req))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = domain.NewInternalError("failed to read backend response", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		err = statusError(resp.StatusCode, parseErrorResponse(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var wire queryCallsResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		err = domain.NewInternalError("failed to decode backend response", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := wire.toModel()
	span.SetAttributes(attribute.Int("stream.calls", len(result.Calls)))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// statusError maps a backend status code to a domain error.
func statusError(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewUnauthorizedError("backend rejected the user token", err)
	case status == http.StatusNotFound:
		return domain.NewNotFoundError("backend resource not found", err)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return domain.NewUnavailableError("backend unavailable", err)
	default:
		return domain.NewValidationError("backend rejected the request", err)
	}
}

// shouldRetry determines if an error or HTTP status code should be retried
func shouldRetry(statusCode int, err error) bool {
	if err != nil {
		// Don't retry if context was cancelled
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		// Don't retry token failures, another attempt would mint the same way
		var tokenErr *tokenError
		if errors.As(err, &tokenErr) {
			return false
		}
		// Retry on network/connection errors
		return true
	}

	// Retry on server errors (5xx)
	if statusCode >= 500 && statusCode < 600 {
		return true
	}

	// Retry on rate limiting (429)
	return statusCode == http.StatusTooManyRequests
}

// calculateBackoff calculates the backoff duration for a retry attempt with jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.config.InitialBackoff
	}

	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffMultiplier, float64(attempt))
	if time.Duration(backoff) > c.config.MaxBackoff {
		backoff = float64(c.config.MaxBackoff)
	}

	// Add jitter (±25% of backoff duration) to prevent thundering herd
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoffWithJitter := time.Duration(backoff + jitter)

	if backoffWithJitter < c.config.InitialBackoff {
		backoffWithJitter = c.config.InitialBackoff
	}

	return backoffWithJitter
}

// doRequest performs an authenticated HTTP request to the backend with retry logic
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, domain.NewInternalError("failed to marshal request body", err)
	}

	endpoint := c.endpoint(path)
	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		req, err := c.createRequest(ctx, method, endpoint, jsonBody)
		if err != nil {
			return nil, err
		}

		c.logRequestAttempt(ctx, method, path, attempt)

		resp, duration, err := c.executeRequestWithTiming(req)

		if isRequestSuccessful(err, resp) {
			slog.DebugContext(ctx, "backend request completed",
				"method", method,
				"path", path,
				"status", resp.StatusCode,
				"duration", duration.String(),
				"attempt", attempt+1,
			)
			if lastResp != nil {
				_ = lastResp.Body.Close()
			}
			return resp, nil
		}

		if lastResp != nil {
			_ = lastResp.Body.Close()
		}
		lastErr, lastResp = err, resp
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}

		if !shouldRetry(statusCode, err) {
			slog.ErrorContext(ctx, "backend request failed (not retryable)",
				"method", method,
				"path", path,
				"status", statusCode,
				"duration", duration.String(),
				"attempt", attempt+1,
				logging.ErrKey, err)
			break
		}

		if attempt == c.config.MaxRetries {
			slog.ErrorContext(ctx, "backend request failed after all retries",
				"method", method,
				"path", path,
				"status", statusCode,
				"attempts", attempt+1,
				logging.ErrKey, err,
				logging.PriorityCritical())
			break
		}

		backoff := c.calculateBackoff(attempt)
		slog.WarnContext(ctx, "backend request failed, retrying",
			"method", method,
			"path", path,
			"status", statusCode,
			"duration", duration.String(),
			"attempt", attempt+1,
			"max_retries", c.config.MaxRetries,
			"backoff", backoff.String(),
			logging.ErrKey, err)

		select {
		case <-ctx.Done():
			if lastResp != nil {
				_ = lastResp.Body.Close()
			}
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr != nil {
		if lastResp != nil {
			_ = lastResp.Body.Close()
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, lastErr
		}
		var tokenErr *tokenError
		if errors.As(lastErr, &tokenErr) {
			return nil, domain.NewUnavailableError("failed to obtain backend token", lastErr)
		}
		return nil, domain.NewUnavailableError(
			fmt.Sprintf("backend request failed after %d attempts", c.config.MaxRetries+1), lastErr)
	}

	// The caller maps the status of the last response.
	return lastResp, nil
}

func (c *Client) endpoint(path string) string {
	query := url.Values{}
	query.Set("api_key", c.apiKey)
	return c.config.BaseURL + path + "?" + query.Encode()
}

// createRequest creates a new HTTP request carrying the user token
func (c *Client) createRequest(ctx context.Context, method, endpoint string, jsonBody []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, domain.NewInternalError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.StreamAuthTypeHeader, "jwt")
	req.Header.Set(constants.StreamClientHeader, clientName)
	return req, nil
}

// logRequestAttempt logs the request attempt
func (c *Client) logRequestAttempt(ctx context.Context, method, path string, attempt int) {
	if attempt == 0 {
		slog.DebugContext(ctx, "making backend request",
			"method", method,
			"path", path,
			"max_retries", c.config.MaxRetries,
		)
		return
	}
	slog.DebugContext(ctx, "retrying backend request",
		"method", method,
		"path", path,
		"attempt", attempt,
		"max_retries", c.config.MaxRetries,
	)
}

// executeRequestWithTiming sets a fresh token and executes the request
func (c *Client) executeRequestWithTiming(req *http.Request) (*http.Response, time.Duration, error) {
	startTime := time.Now()

	token, err := c.tokens.Token()
	if err != nil {
		return nil, time.Since(startTime), &tokenError{err: err}
	}
	req.Header.Set(constants.AuthorizationHeader, token.AccessToken)

	resp, err := c.httpClient.Do(req)
	return resp, time.Since(startTime), err
}

// isRequestSuccessful checks if a request was successful (no error and not a server error/rate limit)
func isRequestSuccessful(err error, resp *http.Response) bool {
	return err == nil && resp != nil && resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests
}

// tokenError marks a failure of the token source, as opposed to the transport.
type tokenError struct {
	err error
}

func (e *tokenError) Error() string {
	return "backend token: " + e.err.Error()
}

func (e *tokenError) Unwrap() error {
	return e.err
}

// parseErrorResponse attempts to parse a backend error response
func parseErrorResponse(body []byte) error {
	var errResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("stream API error (code %d): %s", errResp.Code, errResp.Message)
	}
	return fmt.Errorf("stream API error: %s", string(body))
}
