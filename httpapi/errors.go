package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/tenantauth"
	"github.com/labstack/echo/v4"
)

type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error Error `json:"error"`
}

var errMalformedBody = tenantauth.ErrValidation.WithDetails(map[string]string{"body": "malformed"})

// handleError is the echo HTTPErrorHandler. Engine errors keep their wire
// code; echo errors (unknown route, wrong method, oversized body) get a code
// derived from their status.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := s.render(err, c)
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("write error response")
	}
}

func (s *Server) render(err error, c echo.Context) (int, ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		return he.Code, ErrorResponse{Error: Error{Code: codeForStatus(he.Code), Message: msg}}
	}

	ae := tenantauth.AsAuthError(err)
	status := ae.HTTPStatus()
	if status >= http.StatusInternalServerError {
		ev := s.logger.Error().Str("code", ae.Code).Str("path", c.Path())
		if cause := errors.Unwrap(ae); cause != nil {
			ev = ev.Err(cause)
		}
		ev.Msg("request failed")
	}
	if retry := ae.Details["retry_after"]; retry != "" {
		c.Response().Header().Set("Retry-After", retry)
	}
	if ae.Kind == tenantauth.KindInvalidToken {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
	}
	return status, ErrorResponse{Error: Error{Code: ae.Code, Message: ae.Message, Details: ae.Details}}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusUnsupportedMediaType, http.StatusBadRequest:
		return tenantauth.ErrValidation.Code
	case http.StatusTooManyRequests:
		return tenantauth.ErrRateLimited.Code
	case http.StatusUnauthorized:
		return tenantauth.ErrInvalidToken.Code
	default:
		return tenantauth.ErrInternal.Code
	}
}
