// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagingSubjects(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		expected string
	}{
		{
			name:     "CallsAPIQueue",
			subject:  CallsAPIQueue,
			expected: "lfx.calls-api.queue",
		},
		{
			name:     "GetCallSubject",
			subject:  GetCallSubject,
			expected: "lfx.calls-api.get_call",
		},
		{
			name:     "ListCallsSubject",
			subject:  ListCallsSubject,
			expected: "lfx.calls-api.list_calls",
		},
		{
			name:     "ClientReadySubject",
			subject:  ClientReadySubject,
			expected: "lfx.calls-api.client_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.subject != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.subject)
			}
		})
	}
}

func TestGetCallRequest_Decode(t *testing.T) {
	var req GetCallRequest
	err := json.Unmarshal([]byte(`{"token":"abc","ids":["c42","c43"]}`), &req)
	require.NoError(t, err)

	assert.Equal(t, GetCallRequest{Token: "abc", IDs: []string{"c42", "c43"}}, req)
}

func TestClientReadyEvent_Encode(t *testing.T) {
	event := ClientReadyEvent{
		UserID:  "u1",
		Name:    "ada",
		ReadyAt: time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"u1","name":"ada","ready_at":"2026-05-10T12:00:00Z"}`, string(data))
}
