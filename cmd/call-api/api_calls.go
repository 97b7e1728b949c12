// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
)

// GetCall resolves the call named by the path, or by any of the extra id query parameters.
func (a *CallsAPI) GetCall(w http.ResponseWriter, r *http.Request) {
	ctx := logging.AppendCtx(r.Context(), slog.String("call_id", r.PathValue("id")))

	ids := append([]string{r.PathValue("id")}, r.URL.Query()["id"]...)
	state, err := a.service.GetCall(ctx, bearerToken(r), ids...)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, state)
}

// ListCalls returns the caller's ended and upcoming calls.
func (a *CallsAPI) ListCalls(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := a.service.ListCalls(ctx, bearerToken(r))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, result)
}
