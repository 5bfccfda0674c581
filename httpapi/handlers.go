package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type walletChallengeRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type walletVerifyRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
}

type walletLinkRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type userResponse struct {
	User tenantauth.PublicUser `json:"user"`
}

type authResponse struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expiresAt"`
	SessionID string                `json:"sessionId"`
	User      tenantauth.PublicUser `json:"user"`
}

func newAuthResponse(res *tenantauth.AuthResult) authResponse {
	return authResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		SessionID: res.SessionID,
		User:      res.User,
	}
}

func bind[T any](c echo.Context) (*T, error) {
	req := new(T)
	if err := c.Bind(req); err != nil {
		return nil, errMalformedBody
	}
	return req, nil
}

func (s *Server) register(c echo.Context) error {
	req, err := bind[registerRequest](c)
	if err != nil {
		return err
	}
	t, _ := tenantFrom(c)
	user, err := s.engine.RegisterWithPassword(c.Request().Context(), t.ID, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResponse{User: user})
}

func (s *Server) login(c echo.Context) error {
	req, err := bind[loginRequest](c)
	if err != nil {
		return err
	}
	t, _ := tenantFrom(c)
	res, err := s.engine.LoginWithPassword(c.Request().Context(), t.ID, req.Email, req.Password, c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAuthResponse(res))
}

func (s *Server) walletChallenge(c echo.Context) error {
	req, err := bind[walletChallengeRequest](c)
	if err != nil {
		return err
	}
	t, _ := tenantFrom(c)
	ch, err := s.engine.GenerateWalletChallenge(c.Request().Context(), t.ID, req.WalletAddress)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ch)
}

func (s *Server) walletVerify(c echo.Context) error {
	req, err := bind[walletVerifyRequest](c)
	if err != nil {
		return err
	}
	t, _ := tenantFrom(c)
	res, err := s.engine.VerifyWalletSignature(c.Request().Context(), t.ID, req.WalletAddress, req.Signature, c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAuthResponse(res))
}

func (s *Server) linkWallet(c echo.Context) error {
	req, err := bind[walletLinkRequest](c)
	if err != nil {
		return err
	}
	id := identityFrom(c)
	user, err := s.engine.LinkWallet(c.Request().Context(), id.UserID, req.WalletAddress, req.Signature, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

func (s *Server) me(c echo.Context) error {
	user, err := s.engine.CurrentUser(c.Request().Context(), identityFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

func (s *Server) logout(c echo.Context) error {
	token, _ := c.Get(tokenKey).(string)
	if err := s.engine.Logout(c.Request().Context(), identityFrom(c).UserID, token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) logoutAll(c echo.Context) error {
	n, err := s.engine.LogoutAll(c.Request().Context(), identityFrom(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"revoked": n})
}

func (s *Server) confirmEmail(c echo.Context) error {
	req, err := bind[tokenRequest](c)
	if err != nil {
		return err
	}
	t, _ := tenantFrom(c)
	user, err := s.engine.ConfirmEmailVerification(c.Request().Context(), t.ID, req.Token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

// forgotPassword answers 202 whether or not the email exists.
func (s *Server) forgotPassword(c echo.Context) error {
	req, err := bind[forgotPasswordRequest](c)
	if err != nil {
		return err
	}
	t, _ := tenantFrom(c)
	if err := s.engine.RequestPasswordReset(c.Request().Context(), t.ID, req.Email, c.RealIP()); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) resetPassword(c echo.Context) error {
	req, err := bind[resetPasswordRequest](c)
	if err != nil {
		return err
	}
	t, _ := tenantFrom(c)
	if err := s.engine.ConfirmPasswordReset(c.Request().Context(), t.ID, req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
