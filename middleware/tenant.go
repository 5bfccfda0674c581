package middleware

import (
	"net/http"

	"github.com/MrEthical07/tenantauth"
)

// RequireTenant is Guard for a request already resolved to a tenant.
// tenantOf returns that tenant's id; tokens issued in any other tenant are
// rejected as invalid.
func RequireTenant(engine *tenantauth.Engine, tenantOf func(*http.Request) string) func(http.Handler) http.Handler {
	return guard(engine, tenantOf, true)
}

// Optional attaches the identity when the request carries a valid token and
// passes anonymous or invalid-token requests through unchanged. Persistence
// failures are still reported.
func Optional(engine *tenantauth.Engine) func(http.Handler) http.Handler {
	return guard(engine, nil, false)
}
