// Package httpapi exposes the tenantauth engine over HTTP with echo.
//
// Every request is first resolved to a tenant (Host, then X-Tenant, then the
// default tenant). Failures are written as
//
//	{"error":{"code":"<wire code>","message":"<fixed text>","details":{...}}}
package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// HeaderTenant names the tenant when the Host does not match a tenant domain.
const HeaderTenant = "X-Tenant"

type Server struct {
	engine *tenantauth.Engine
	logger zerolog.Logger
}

func New(engine *tenantauth.Engine, logger zerolog.Logger) *Server {
	return &Server{
		engine: engine,
		logger: logger.With().Str("component", "httpapi").Logger(),
	}
}

// Echo returns a configured echo instance with every route registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	s.Setup(e)
	return e
}

// Setup installs the error handler, the common middleware and the routes on e.
func (s *Server) Setup(e *echo.Echo) {
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(s.requestLogger())

	e.GET("/healthz", s.health)

	auth := e.Group("/auth", s.resolveTenant)
	auth.POST("/register", s.register)
	auth.POST("/login", s.login)
	auth.POST("/wallet/challenge", s.walletChallenge)
	auth.POST("/wallet/verify", s.walletVerify)
	auth.POST("/email/verify", s.confirmEmail)
	auth.POST("/password/forgot", s.forgotPassword)
	auth.POST("/password/reset", s.resetPassword)

	protected := auth.Group("", s.requireBearer)
	protected.GET("/me", s.me)
	protected.POST("/wallet/link", s.linkWallet)
	protected.POST("/logout", s.logout)
	protected.POST("/logout/all", s.logoutAll)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := s.logger.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = s.logger.Error()
			}
			if t, ok := tenantFrom(c); ok {
				ev = ev.Str("tenant_id", t.ID)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

func (s *Server) health(c echo.Context) error {
	h := s.engine.Health(c.Request().Context())
	status := http.StatusOK
	if !h.RedisAvailable {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]any{
		"redis":     h.RedisAvailable,
		"latencyMs": float64(h.RedisLatency) / float64(time.Millisecond),
	})
}
