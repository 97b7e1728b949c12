// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-call-service/pkg/constants"
)

// AuthorizationMiddleware stores the Authorization header of a request in its context.
// Validation is left to the handlers.
func AuthorizationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authorization := r.Header.Get(constants.AuthorizationHeader); authorization != "" {
				r = r.WithContext(context.WithValue(r.Context(), constants.AuthorizationContextID, authorization))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthorizationFromContext returns the Authorization header stored by AuthorizationMiddleware.
func AuthorizationFromContext(ctx context.Context) (string, bool) {
	authorization, ok := ctx.Value(constants.AuthorizationContextID).(string)
	return authorization, ok && authorization != ""
}
