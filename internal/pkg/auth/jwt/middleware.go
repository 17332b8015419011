package jwt

import (
	"context"
	"net/http"
	"strings"

	"voicerelay/internal/pkg/errs"
	"voicerelay/internal/pkg/logx"
	"voicerelay/internal/pkg/resp"
)

type contextKey string

// ContextAuthPayloadKey stores the validated *Payload in the request context.
const ContextAuthPayloadKey contextKey = "auth_payload"

// RequireAdmin rejects requests without a valid "Bearer <token>" header whose
// role is RoleAdmin. Accepted claims are stored in the request context.
func RequireAdmin(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			payload, err := ParseToken(parts[1], secretKey)
			if err != nil {
				logx.Warn("Rejected admin request with invalid token", "error", err.Error())
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			if payload.Role != RoleAdmin {
				logx.Warn("Rejected admin request: wrong role", "operator", payload.Operator, "role", payload.Role)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), ContextAuthPayloadKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPayloadFromContext returns the claims stored by RequireAdmin, or nil.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)

	if !ok {
		return nil
	}

	return payload
}
