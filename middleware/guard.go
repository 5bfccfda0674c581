package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/tenantauth"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity a guard attached to ctx.
func IdentityFromContext(ctx context.Context) (*tenantauth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*tenantauth.Identity)
	return id, ok
}

// ContextWithIdentity attaches id to ctx the way the guards do.
func ContextWithIdentity(ctx context.Context, id *tenantauth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard rejects requests whose bearer token does not verify in any tenant.
func Guard(engine *tenantauth.Engine) func(http.Handler) http.Handler {
	return guard(engine, nil, true)
}

func guard(engine *tenantauth.Engine, tenantOf func(*http.Request) string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, tenantauth.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, tenantauth.ErrInvalidToken)
				return
			}

			var (
				id  *tenantauth.Identity
				err error
			)
			if tenantOf != nil {
				id, err = engine.VerifyBearerInTenant(r.Context(), token, tenantOf(r))
			} else {
				id, err = engine.VerifyBearer(r.Context(), token)
			}
			if err != nil {
				if !required && errors.Is(err, tenantauth.ErrInvalidToken) {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, err)
				return
			}

			ctx := ContextWithIdentity(r.Context(), id)
			ctx = tenantauth.WithTenantID(ctx, id.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteError writes err as the JSON error envelope with its mapped status.
func WriteError(w http.ResponseWriter, err error) {
	ae := tenantauth.AsAuthError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if ae.Kind == tenantauth.KindInvalidToken {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	w.WriteHeader(ae.HTTPStatus())
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorPayload{
		Code:    ae.Code,
		Message: ae.Message,
		Details: ae.Details,
	}})
}
