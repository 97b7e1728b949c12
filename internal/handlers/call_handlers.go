// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/service"
)

// CallHandler answers call lookups requested over NATS.
type CallHandler struct {
	callService *service.CallService
}

// Ensure that CallHandler implements domain.MessageHandler
var _ domain.MessageHandler = (*CallHandler)(nil)

func NewCallHandler(callService *service.CallService) *CallHandler {
	return &CallHandler{
		callService: callService,
	}
}

func (h *CallHandler) HandlerReady() bool {
	return h.callService != nil && h.callService.ServiceReady()
}

// HandleMessage implements domain.MessageHandler interface
func (h *CallHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]func(ctx context.Context, msg domain.Message) ([]byte, error){
		models.GetCallSubject:   h.HandleGetCall,
		models.ListCallsSubject: h.HandleListCalls,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		respondEmpty(ctx, msg)
		return
	}

	response, err := handler(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "error handling message",
			logging.ErrKey, err,
			"error_type", domain.GetErrorType(err),
		)
		respondEmpty(ctx, msg)
		return
	}

	if !msg.HasReply() {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
		return
	}
	if err := msg.Respond(response); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "responded to NATS message")
}

// respondEmpty replies with no payload, which requesters read as a failure.
func respondEmpty(ctx context.Context, msg domain.Message) {
	if !msg.HasReply() {
		return
	}
	if err := msg.Respond(nil); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
	}
}

// HandleGetCall resolves the call named by a models.GetCallRequest.
func (h *CallHandler) HandleGetCall(ctx context.Context, msg domain.Message) ([]byte, error) {
	if !h.HandlerReady() {
		return nil, domain.ErrServiceUnavailable
	}

	var req models.GetCallRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return nil, domain.NewValidationError("invalid get call request", err)
	}

	state, err := h.callService.GetCall(ctx, req.Token, req.IDs...)
	if err != nil {
		return nil, err
	}
	return json.Marshal(state)
}

// HandleListCalls resolves the calls of the user owning a models.ListCallsRequest token.
func (h *CallHandler) HandleListCalls(ctx context.Context, msg domain.Message) ([]byte, error) {
	if !h.HandlerReady() {
		return nil, domain.ErrServiceUnavailable
	}

	var req models.ListCallsRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return nil, domain.NewValidationError("invalid list calls request", err)
	}

	result, err := h.callService.ListCalls(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}
