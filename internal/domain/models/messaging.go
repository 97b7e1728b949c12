// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// NATS subjects that the call service handles.
const (
	// CallsAPIQueue is the subject name for the call service API queue group.
	// The subject is of the form: lfx.calls-api.queue
	CallsAPIQueue = "lfx.calls-api.queue"

	// GetCallSubject is the request/reply subject resolving a single call.
	// The subject is of the form: lfx.calls-api.get_call
	GetCallSubject = "lfx.calls-api.get_call"

	// ListCallsSubject is the request/reply subject resolving the calls of the requesting user.
	// The subject is of the form: lfx.calls-api.list_calls
	ListCallsSubject = "lfx.calls-api.list_calls"
)

// NATS subjects that the call service sends messages about.
const (
	// ClientReadySubject is published every time a session's call client is (re)built.
	// The subject is of the form: lfx.calls-api.client_ready
	ClientReadySubject = "lfx.calls-api.client_ready"
)

// GetCallRequest is the payload of a GetCallSubject request.
type GetCallRequest struct {
	Token string   `json:"token"`
	IDs   []string `json:"ids"`
}

// ListCallsRequest is the payload of a ListCallsSubject request.
type ListCallsRequest struct {
	Token string `json:"token"`
}

// ClientReadyEvent is the payload published on ClientReadySubject.
type ClientReadyEvent struct {
	UserID  string    `json:"user_id"`
	Name    string    `json:"name"`
	ReadyAt time.Time `json:"ready_at"`
}
