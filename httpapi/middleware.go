package httpapi

import (
	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/middleware"
	"github.com/labstack/echo/v4"
)

const (
	tenantKey   = "tenantauth.tenant"
	identityKey = "tenantauth.identity"
	tokenKey    = "tenantauth.token"
)

// resolveTenant pins the request to a tenant and carries the client IP and
// User-Agent into the request context for rate limiting and audit.
func (s *Server) resolveTenant(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := tenantauth.WithClientIP(req.Context(), c.RealIP())
		ctx = tenantauth.WithUserAgent(ctx, req.UserAgent())

		t, err := s.engine.ResolveTenant(ctx, req.Host, req.Header.Get(HeaderTenant))
		if err != nil {
			return err
		}
		ctx = tenantauth.WithTenantID(ctx, t.ID)

		c.Set(tenantKey, t)
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

// requireBearer accepts only tokens issued in the resolved tenant.
func (s *Server) requireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return tenantauth.ErrInvalidToken
		}
		t, _ := tenantFrom(c)

		id, err := s.engine.VerifyBearerInTenant(c.Request().Context(), token, t.ID)
		if err != nil {
			return err
		}
		c.Set(identityKey, id)
		c.Set(tokenKey, token)
		c.SetRequest(c.Request().WithContext(middleware.ContextWithIdentity(c.Request().Context(), id)))
		return next(c)
	}
}

func tenantFrom(c echo.Context) (tenantauth.Tenant, bool) {
	t, ok := c.Get(tenantKey).(tenantauth.Tenant)
	return t, ok
}

func identityFrom(c echo.Context) *tenantauth.Identity {
	id, _ := c.Get(identityKey).(*tenantauth.Identity)
	return id
}
