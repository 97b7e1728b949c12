// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
)

// TokenProvider returns a calling backend auth token on demand.
// It is registered with the call client, which invokes it whenever it needs a fresh token.
type TokenProvider func(ctx context.Context) (string, error)

// CallQuerier is the one calling backend capability both call retrievers depend on.
type CallQuerier interface {
	QueryCalls(ctx context.Context, req *models.QueryCallsRequest) (*models.QueryCallsResponse, error)
}

// CallClient is an authenticated connection to the calling backend for one user.
type CallClient interface {
	CallQuerier

	// User returns the user the client is connected as.
	User() models.CallUser

	// Close releases the client. Queries issued afterwards fail.
	Close() error
}

// ClientOptions are the inputs needed to build a CallClient.
type ClientOptions struct {
	APIKey        string
	User          models.CallUser
	TokenProvider TokenProvider
}

// ClientFactory builds call clients.
type ClientFactory interface {
	NewClient(ctx context.Context, opts ClientOptions) (CallClient, error)
}
